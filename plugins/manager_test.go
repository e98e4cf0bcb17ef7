package plugins

import "testing"

func TestManagerActivation(t *testing.T) {
	m := NewManager()

	if err := m.Register(Plugin{Name: "git", Tools: []string{"git_status"}}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Register(Plugin{Name: "git"}); err == nil {
		t.Error("duplicate registration must error")
	}

	if m.Enabled("git") {
		t.Error("plugins must start inactive")
	}
	if !m.Enabled("") {
		t.Error("core tools must always be enabled")
	}

	if err := m.Activate("git"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if !m.Enabled("git") {
		t.Error("plugin not enabled after activation")
	}

	if err := m.Deactivate("git"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}
	if m.Enabled("git") {
		t.Error("plugin still enabled after deactivation")
	}

	if err := m.Activate("missing"); err == nil {
		t.Error("activating an unknown plugin must error")
	}
	if err := m.Deactivate("missing"); err == nil {
		t.Error("deactivating an unknown plugin must error")
	}
}

func TestManagerActiveNamesSorted(t *testing.T) {
	m := NewManager()
	for _, name := range []string{"web", "git", "db"} {
		if err := m.Register(Plugin{Name: name}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if err := m.Activate(name); err != nil {
			t.Fatalf("Activate failed: %v", err)
		}
	}

	names := m.ActiveNames()
	want := []string{"db", "git", "web"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestManagerList(t *testing.T) {
	m := NewManager()
	if err := m.Register(Plugin{Name: "web", Description: "http tools"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Register(Plugin{Name: "git"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	list := m.List()
	if len(list) != 2 || list[0].Name != "git" || list[1].Name != "web" {
		t.Errorf("expected sorted [git web], got %v", list)
	}
}
