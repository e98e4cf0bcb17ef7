package tools

import "testing"

func TestDelegationTrackerNesting(t *testing.T) {
	tr := NewDelegationTracker()

	if _, ok := tr.ActiveTarget(); ok {
		t.Error("empty tracker reported an active target")
	}

	tr.Begin("outer", "dispatch_agent")
	tr.Begin("inner", "dispatch_agent")
	if tr.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", tr.Depth())
	}

	target, ok := tr.ActiveTarget()
	if !ok || target != "inner" {
		t.Errorf("expected deepest delegation as target, got %q (ok=%v)", target, ok)
	}

	tr.End("inner")
	target, ok = tr.ActiveTarget()
	if !ok || target != "outer" {
		t.Errorf("expected outer delegation after inner ended, got %q (ok=%v)", target, ok)
	}

	tr.End("outer")
	if tr.Depth() != 0 {
		t.Errorf("expected empty tracker, got depth %d", tr.Depth())
	}
}

func TestDelegationTrackerCompletingExcluded(t *testing.T) {
	tr := NewDelegationTracker()

	tr.Begin("outer", "dispatch_agent")
	tr.Begin("inner", "dispatch_agent")
	tr.MarkCompleting("inner")

	target, ok := tr.ActiveTarget()
	if !ok || target != "outer" {
		t.Errorf("completing delegation still targeted: got %q (ok=%v)", target, ok)
	}

	tr.MarkCompleting("outer")
	if _, ok := tr.ActiveTarget(); ok {
		t.Error("expected no target once every delegation is completing")
	}
}

func TestDelegationTrackerEndUnknownNoop(t *testing.T) {
	tr := NewDelegationTracker()
	tr.Begin("a", "dispatch_agent")
	tr.End("missing")
	if tr.Depth() != 1 {
		t.Errorf("ending an unknown call changed the stack: depth=%d", tr.Depth())
	}
}
