package tools

import (
	"sync"

	"github.com/mkarlsen/daedalus/cycles"
)

// DuplicatePolicy configures when a repeated identical call within one turn
// is annotated versus blocked. Zero thresholds disable the corresponding
// behavior.
type DuplicatePolicy struct {
	WarnThreshold  int
	BlockThreshold int
}

// DefaultDuplicatePolicy warns on the second identical call and blocks from
// the third.
func DefaultDuplicatePolicy() DuplicatePolicy {
	return DuplicatePolicy{WarnThreshold: 2, BlockThreshold: 3}
}

// DuplicateDecision is the outcome of a duplicate check for one call.
type DuplicateDecision struct {
	Count int // occurrences including the current call
	Warn  bool
	Block bool
}

// DuplicateDetector tracks identical name+argument calls within the current
// turn. Calls are recorded only after successful execution; Reset starts a
// new turn.
type DuplicateDetector struct {
	mu     sync.Mutex
	policy DuplicatePolicy
	seen   map[string]int
}

// NewDuplicateDetector creates a detector with the given policy.
func NewDuplicateDetector(policy DuplicatePolicy) *DuplicateDetector {
	return &DuplicateDetector{
		policy: policy,
		seen:   make(map[string]int),
	}
}

// Check classifies the call against the recorded occurrences this turn.
func (d *DuplicateDetector) Check(name string, args map[string]any) DuplicateDecision {
	sig := cycles.Signature(name, args)

	d.mu.Lock()
	defer d.mu.Unlock()

	count := d.seen[sig] + 1
	return DuplicateDecision{
		Count: count,
		Warn:  d.policy.WarnThreshold > 0 && count >= d.policy.WarnThreshold,
		Block: d.policy.BlockThreshold > 0 && count >= d.policy.BlockThreshold,
	}
}

// Record registers a completed call.
func (d *DuplicateDetector) Record(name string, args map[string]any) {
	sig := cycles.Signature(name, args)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[sig]++
}

// Reset clears the recorded calls at the start of a new turn.
func (d *DuplicateDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]int)
}
