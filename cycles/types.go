// Package cycles detects unproductive tool-call repetition.
//
// The detector keeps a bounded sliding window of normalized tool-call
// signatures and file-content fingerprints and computes five independent
// repetition signals per batch of calls. Signals are advisory data for the
// surrounding agent loop, never errors.
//
// Information Hiding:
// - History window, per-path counters, and search metrics hidden behind the
//   recording and query operations
// - Fingerprinting strategy hidden behind the Fingerprinter interface
package cycles

import "time"

// Issue categorizes a detected repetition signal.
type Issue string

// Signal categories.
const (
	IssueExactDuplicate Issue = "exact_duplicate"
	IssueRepeatedFile   Issue = "repeated_file"
	IssueSimilarCalls   Issue = "similar_calls"
	IssueLowHitRate     Issue = "low_hit_rate"
	IssueEmptyStreak    Issue = "empty_streak"
)

// Severity grades a signal.
type Severity string

// Severity levels.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// GlobalKey is the synthetic map key for cross-call signals (low hit rate,
// empty streak) that are not attached to one specific tool call.
const GlobalKey = "global"

// CycleInfo is the result record for one detected signal. Produced
// transiently per detection pass and never stored.
type CycleInfo struct {
	ToolName      string         `json:"tool_name"`
	Count         int            `json:"count"`
	IsValidRepeat bool           `json:"is_valid_repeat"`
	Issue         Issue          `json:"issue"`
	Severity      Severity       `json:"severity"`
	Message       string         `json:"message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CallResult is the per-call outcome consumed by RecordToolCalls to update
// the search hit-rate and empty-streak counters.
type CallResult struct {
	Success bool
	Empty   bool
}

// historyEntry is one sliding-window record: the call's signature plus the
// file-content fingerprints captured at call time for read-like operations.
type historyEntry struct {
	signature    string
	toolName     string
	timestamp    time.Time
	fingerprints map[string]string
}

// Config holds the detection thresholds. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	HistorySize         int     // sliding-window capacity
	DuplicateThreshold  int     // identical signatures before flagging
	FileAccessThreshold int     // per-path accesses before flagging
	SimilarityThreshold float64 // Jaccard floor for "similar" parameters
	SimilarCallsLimit   int     // similar calls before flagging
	SearchMinCalls      int     // search calls before hit rate is judged
	SearchHitRateFloor  float64 // hit rate below this triggers
	EmptyStreakLimit    int     // consecutive empty results before flagging
	BreakWindow         int     // pairwise-distinct recent entries that clear history
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		HistorySize:         10,
		DuplicateThreshold:  3,
		FileAccessThreshold: 5,
		SimilarityThreshold: 0.6,
		SimilarCallsLimit:   3,
		SearchMinCalls:      5,
		SearchHitRateFloor:  0.3,
		EmptyStreakLimit:    3,
		BreakWindow:         5,
	}
}
