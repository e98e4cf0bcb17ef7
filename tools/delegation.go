package tools

import "sync"

// delegationPhase tracks where a delegation call is in its lifecycle.
type delegationPhase int

const (
	phaseExecuting delegationPhase = iota
	phaseCompleting
)

type delegationEntry struct {
	callID string
	tool   string
	phase  delegationPhase
}

// DelegationTracker records which in-flight delegation tool call currently
// owns interjection traffic. Delegations nest; the deepest one still
// executing is the injection target, and calls already completing are
// excluded.
type DelegationTracker struct {
	mu    sync.Mutex
	stack []delegationEntry
}

// NewDelegationTracker creates an empty tracker.
func NewDelegationTracker() *DelegationTracker {
	return &DelegationTracker{}
}

// Begin pushes a delegation call in the executing phase.
func (t *DelegationTracker) Begin(callID, tool string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stack = append(t.stack, delegationEntry{callID: callID, tool: tool, phase: phaseExecuting})
}

// MarkCompleting transitions the call from executing to completing; it no
// longer receives injected messages.
func (t *DelegationTracker) MarkCompleting(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].callID == callID {
			t.stack[i].phase = phaseCompleting
			return
		}
	}
}

// End removes the call from the tracker.
func (t *DelegationTracker) End(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].callID == callID {
			t.stack = append(t.stack[:i], t.stack[i+1:]...)
			return
		}
	}
}

// ActiveTarget returns the call id of the deepest delegation still in the
// executing phase, if any.
func (t *DelegationTracker) ActiveTarget() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].phase == phaseExecuting {
			return t.stack[i].callID, true
		}
	}
	return "", false
}

// Depth returns the number of tracked delegations.
func (t *DelegationTracker) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stack)
}
