package tools

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// fakePluginView reports a fixed activation state.
type fakePluginView struct {
	active []string
}

func (f *fakePluginView) ActiveNames() []string { return f.active }

func (f *fakePluginView) Enabled(plugin string) bool {
	if plugin == "" {
		return true
	}
	for _, name := range f.active {
		if name == plugin {
			return true
		}
	}
	return false
}

func definitionNames(defs []openai.Tool) []string {
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Function.Name)
	}
	return names
}

func definitionSchema(t *testing.T, def openai.Tool) jsonschema.Definition {
	t.Helper()
	params, ok := def.Function.Parameters.(jsonschema.Definition)
	if !ok {
		t.Fatalf("unexpected parameters type %T", def.Function.Parameters)
	}
	return params
}

func TestFunctionDefinitionsInjectsDescription(t *testing.T) {
	o := newTestOrchestrator(t, newFakeTool("scan"))

	defs := o.FunctionDefinitions(nil, "main")
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	params := definitionSchema(t, defs[0])
	if _, ok := params.Properties[descriptionParam]; !ok {
		t.Error("description property was not injected")
	}

	var descRequired, targetRequired bool
	for _, name := range params.Required {
		switch name {
		case descriptionParam:
			descRequired = true
		case "target":
			targetRequired = true
		}
	}
	if !descRequired {
		t.Error("injected description property must be required")
	}
	if !targetRequired {
		t.Error("declared required parameter missing from schema")
	}
}

func TestFunctionDefinitionsDeclaredDescriptionKept(t *testing.T) {
	tool := newFakeTool("scan")
	tool.meta.Parameters = append(tool.meta.Parameters, ToolParameter{
		Name: "description", ParamType: "string", Description: "custom", Required: false,
	})
	o := newTestOrchestrator(t, tool)

	defs := o.FunctionDefinitions(nil, "main")
	params := definitionSchema(t, defs[0])
	if params.Properties[descriptionParam].Description != "custom" {
		t.Error("declared description parameter was overwritten")
	}
	for _, name := range params.Required {
		if name == descriptionParam {
			t.Error("optional declared description must not become required")
		}
	}
}

func TestFunctionDefinitionsDelegationExempt(t *testing.T) {
	tool := &fakeTool{meta: ToolMetadata{Name: "dispatch_agent", Description: "delegate", Delegation: true}}
	o := newTestOrchestrator(t, tool)

	defs := o.FunctionDefinitions(nil, "main")
	params := definitionSchema(t, defs[0])
	if _, ok := params.Properties[descriptionParam]; !ok {
		t.Error("description property missing from delegation tool schema")
	}
	for _, name := range params.Required {
		if name == descriptionParam {
			t.Error("description must not be required for delegation tools")
		}
	}
}

func TestFunctionDefinitionsPluginFiltering(t *testing.T) {
	core := newFakeTool("core_tool")
	gitTool := newFakeTool("git_status")
	gitTool.meta.Plugin = "git"
	webTool := newFakeTool("fetch_url")
	webTool.meta.Plugin = "web"

	registry := NewRegistry()
	for _, tool := range []Tool{core, gitTool, webTool} {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	view := &fakePluginView{active: []string{"git"}}
	o := NewOrchestrator(registry, WithPlugins(view))

	names := definitionNames(o.FunctionDefinitions(nil, "main"))
	if len(names) != 2 {
		t.Fatalf("expected 2 definitions, got %v", names)
	}
	for _, name := range names {
		if name == "fetch_url" {
			t.Error("tool from an inactive plugin is visible")
		}
	}

	// Activation changes the cache key, so no stale entry is served.
	view.active = []string{"git", "web"}
	if got := len(o.FunctionDefinitions(nil, "main")); got != 3 {
		t.Errorf("expected 3 definitions after activation, got %d", got)
	}
}

func TestFunctionDefinitionsAgentAndExcludeFiltering(t *testing.T) {
	open := newFakeTool("open_tool")
	restricted := newFakeTool("planner_tool")
	restricted.meta.AllowedAgents = []string{"planner"}
	o := newTestOrchestrator(t, open, restricted)

	names := definitionNames(o.FunctionDefinitions(nil, "main"))
	if len(names) != 1 || names[0] != "open_tool" {
		t.Errorf("expected only open_tool for agent main, got %v", names)
	}

	names = definitionNames(o.FunctionDefinitions(nil, "planner"))
	if len(names) != 2 {
		t.Errorf("expected both tools for agent planner, got %v", names)
	}

	names = definitionNames(o.FunctionDefinitions([]string{"open_tool"}, "planner"))
	if len(names) != 1 || names[0] != "planner_tool" {
		t.Errorf("expected exclusion to drop open_tool, got %v", names)
	}
}

func TestFunctionDefinitionsCacheInvalidation(t *testing.T) {
	o := newTestOrchestrator(t, newFakeTool("scan"))

	if got := len(o.FunctionDefinitions(nil, "main")); got != 1 {
		t.Fatalf("expected 1 definition, got %d", got)
	}

	if err := o.Registry().Register(newFakeTool("extra")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := len(o.FunctionDefinitions(nil, "main")); got != 2 {
		t.Errorf("expected 2 definitions after registration, got %d", got)
	}

	o.Registry().Unregister("extra")
	if got := len(o.FunctionDefinitions(nil, "main")); got != 1 {
		t.Errorf("expected 1 definition after unregistration, got %d", got)
	}
}

func TestFunctionDefinitionsKeyedBySeparateParts(t *testing.T) {
	o := newTestOrchestrator(t, newFakeTool("a"), newFakeTool("b"))

	// No tool is named "a,b", so nothing is excluded here. The cached entry
	// must not be served for the genuinely excluding call below.
	if got := len(o.FunctionDefinitions([]string{"a,b"}, "")); got != 2 {
		t.Fatalf("expected 2 definitions for a non-matching exclusion, got %d", got)
	}
	if got := len(o.FunctionDefinitions([]string{"a", "b"}, "")); got != 0 {
		t.Errorf("expected 0 definitions with both tools excluded, got %d", got)
	}

	// Bytes shifting between the exclusion list and the agent name must not
	// land on the same key.
	if got := len(o.FunctionDefinitions([]string{"a|b"}, "c")); got != 2 {
		t.Errorf("expected 2 definitions for a non-matching exclusion, got %d", got)
	}
	if got := len(o.FunctionDefinitions([]string{"a"}, "b|c")); got != 1 {
		t.Errorf("expected 1 definition with tool a excluded, got %d", got)
	}
}
