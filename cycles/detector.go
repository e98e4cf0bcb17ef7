package cycles

import (
	"fmt"
	"sync"
	"time"

	radix "github.com/armon/go-radix"
	"go.uber.org/zap"

	"github.com/mkarlsen/daedalus/internal/similarity"
	"github.com/mkarlsen/daedalus/model"
)

// Detector maintains a bounded history of tool-call signatures and computes
// the five repetition signals. One detector belongs to one agent instance;
// methods are safe for concurrent use within it.
type Detector struct {
	mu          sync.Mutex
	cfg         Config
	logger      *zap.Logger
	fingerprint Fingerprinter

	history     []historyEntry
	fileAccess  *radix.Tree // path -> access count
	searchCalls int
	searchHits  int
	emptyStreak int
}

// NewDetector creates a detector with the given thresholds. A nil logger
// defaults to a no-op logger; a nil fingerprinter reads the filesystem.
func NewDetector(cfg Config, fp Fingerprinter, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fp == nil {
		fp = NewFileFingerprinter()
	}
	return &Detector{
		cfg:         cfg,
		logger:      logger,
		fingerprint: fp,
		fileAccess:  radix.New(),
	}
}

// Check evaluates the repetition signals for a batch of tool calls against
// the recorded history. Per-call signals are keyed by tool-call id; global
// signals by GlobalKey. A panic inside any check is logged and treated as no
// signal so detection failures never block the triggering call.
func (d *Detector) Check(calls []model.ToolCall) map[string]CycleInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make(map[string]CycleInfo)
	for _, call := range calls {
		if info, ok := d.checkCall(call); ok {
			result[call.ID] = info
		}
	}
	if info, ok := d.checkGlobal(); ok {
		result[GlobalKey] = info
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// checkCall evaluates the per-call signals in priority order: exact
// duplicate, repeated file access, similar calls. First match wins.
func (d *Detector) checkCall(call model.ToolCall) (info CycleInfo, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("cycle check failed",
				zap.String("tool", call.Function.Name), zap.Any("panic", r))
			info, ok = CycleInfo{}, false
		}
	}()

	name := call.Function.Name
	sig := Signature(name, call.Function.Arguments)

	if info, ok := d.checkExactDuplicate(call, sig); ok {
		return info, true
	}
	if info, ok := d.checkRepeatedFile(call); ok {
		return info, true
	}
	if info, ok := d.checkSimilarCalls(name, sig); ok {
		return info, true
	}
	return CycleInfo{}, false
}

// checkExactDuplicate counts prior entries with an identical signature. For
// read-like tools the repeat is downgraded to a valid one (severity low)
// when the target file's current fingerprint differs from a recorded one,
// i.e. the file changed and re-reading is legitimate.
func (d *Detector) checkExactDuplicate(call model.ToolCall, sig string) (CycleInfo, bool) {
	name := call.Function.Name
	count := 1 // the current call
	var matching []historyEntry
	for _, entry := range d.history {
		if entry.signature == sig {
			count++
			matching = append(matching, entry)
		}
	}
	if count < d.cfg.DuplicateThreshold {
		return CycleInfo{}, false
	}

	if model.IsReadTool(name) && d.fileChangedSince(call, matching) {
		return CycleInfo{
			ToolName:      name,
			Count:         count,
			IsValidRepeat: true,
			Issue:         IssueExactDuplicate,
			Severity:      SeverityLow,
			Message:       fmt.Sprintf("%s repeated %d times, but the file changed between reads", name, count),
		}, true
	}

	return CycleInfo{
		ToolName: name,
		Count:    count,
		Issue:    IssueExactDuplicate,
		Severity: SeverityHigh,
		Message:  fmt.Sprintf("identical %s call repeated %d times", name, count),
	}, true
}

// fileChangedSince reports whether any path referenced by the call now has a
// fingerprint different from one recorded in a matching history entry.
func (d *Detector) fileChangedSince(call model.ToolCall, matching []historyEntry) bool {
	for _, path := range model.CallPaths(call.Function.Arguments) {
		current, err := d.fingerprint.Fingerprint(path)
		if err != nil {
			continue
		}
		for _, entry := range matching {
			recorded, ok := entry.fingerprints[path]
			if ok && recorded != current {
				return true
			}
		}
	}
	return false
}

func (d *Detector) checkRepeatedFile(call model.ToolCall) (CycleInfo, bool) {
	name := call.Function.Name
	if !model.IsReadTool(name) {
		return CycleInfo{}, false
	}
	for _, path := range model.CallPaths(call.Function.Arguments) {
		count := d.pathAccessCount(path) + 1 // including the current call
		if count < d.cfg.FileAccessThreshold {
			continue
		}
		return CycleInfo{
			ToolName: name,
			Count:    count,
			Issue:    IssueRepeatedFile,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("%s accessed %d times this turn", path, count),
			Metadata: map[string]any{"path": path},
		}, true
	}
	return CycleInfo{}, false
}

// checkSimilarCalls measures Jaccard similarity over the key:value parameter
// tokens between the current call and history entries with the same tool
// name. Textually identical signatures are never classified similar; that is
// the exact-duplicate path.
func (d *Detector) checkSimilarCalls(name, sig string) (CycleInfo, bool) {
	tokens := signatureTokens(sig)
	similarCount := 0
	for _, entry := range d.history {
		if entry.toolName != name || entry.signature == sig {
			continue
		}
		score := similarity.Jaccard(tokens, signatureTokens(entry.signature))
		if score >= d.cfg.SimilarityThreshold {
			similarCount++
		}
	}
	if similarCount < d.cfg.SimilarCallsLimit {
		return CycleInfo{}, false
	}
	return CycleInfo{
		ToolName: name,
		Count:    similarCount,
		Issue:    IssueSimilarCalls,
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("%d near-identical %s calls with slightly varied arguments", similarCount, name),
	}, true
}

// checkGlobal evaluates the cross-call signals: low search hit rate, then
// empty-result streak.
func (d *Detector) checkGlobal() (info CycleInfo, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("global cycle check failed", zap.Any("panic", r))
			info, ok = CycleInfo{}, false
		}
	}()

	if d.searchCalls >= d.cfg.SearchMinCalls {
		rate := float64(d.searchHits) / float64(d.searchCalls)
		if rate < d.cfg.SearchHitRateFloor {
			return CycleInfo{
				Count:    d.searchCalls,
				Issue:    IssueLowHitRate,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("only %d of %d searches found anything", d.searchHits, d.searchCalls),
				Metadata: map[string]any{"hit_rate": rate},
			}, true
		}
	}
	if d.cfg.EmptyStreakLimit > 0 && d.emptyStreak >= d.cfg.EmptyStreakLimit {
		return CycleInfo{
			Count:    d.emptyStreak,
			Issue:    IssueEmptyStreak,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%d consecutive tool calls returned nothing", d.emptyStreak),
		}, true
	}
	return CycleInfo{}, false
}

// RecordToolCalls appends history entries for the calls, capturing file
// fingerprints for read-like operations before counters are overwritten,
// then trims the sliding window oldest-first. Results, when provided, feed
// the search hit-rate and empty-streak counters.
func (d *Detector) RecordToolCalls(calls []model.ToolCall, results map[string]CallResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, call := range calls {
		name := call.Function.Name
		entry := historyEntry{
			signature: Signature(name, call.Function.Arguments),
			toolName:  name,
			timestamp: time.Now(),
		}

		if model.IsReadTool(name) {
			for _, path := range model.CallPaths(call.Function.Arguments) {
				fp, err := d.fingerprint.Fingerprint(path)
				if err == nil {
					if entry.fingerprints == nil {
						entry.fingerprints = make(map[string]string)
					}
					entry.fingerprints[path] = fp
				}
				d.fileAccess.Insert(path, d.pathAccessCount(path)+1)
			}
		}

		if model.IsSearchTool(name) {
			d.searchCalls++
		}
		if res, ok := results[call.ID]; ok {
			if res.Success && !res.Empty {
				if model.IsSearchTool(name) {
					d.searchHits++
				}
				d.emptyStreak = 0
			} else if res.Empty {
				d.emptyStreak++
			}
		}

		d.history = append(d.history, entry)
	}

	if d.cfg.HistorySize > 0 && len(d.history) > d.cfg.HistorySize {
		d.history = append([]historyEntry(nil), d.history[len(d.history)-d.cfg.HistorySize:]...)
	}
}

func (d *Detector) pathAccessCount(path string) int {
	if v, ok := d.fileAccess.Get(path); ok {
		return v.(int)
	}
	return 0
}

// PathAccessesUnder returns the total recorded accesses for paths sharing
// the given prefix, e.g. every read below one directory.
func (d *Detector) PathAccessesUnder(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := 0
	d.fileAccess.WalkPrefix(prefix, func(_ string, v any) bool {
		total += v.(int)
		return false
	})
	return total
}

// ClearIfBroken clears all history once the most recent BreakWindow entries
// are pairwise distinct, meaning the repetition pattern is broken.
func (d *Detector) ClearIfBroken() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := d.cfg.BreakWindow
	if k <= 1 || len(d.history) < k {
		return false
	}
	recent := d.history[len(d.history)-k:]
	seen := make(map[string]bool, k)
	for _, entry := range recent {
		if seen[entry.signature] {
			return false
		}
		seen[entry.signature] = true
	}
	d.history = nil
	return true
}

// ClearHistory resets the window and every counter. Called at the start of a
// new user turn.
func (d *Detector) ClearHistory() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = nil
	d.fileAccess = radix.New()
	d.searchCalls = 0
	d.searchHits = 0
	d.emptyStreak = 0
}

// HistoryLen returns the current sliding-window length.
func (d *Detector) HistoryLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history)
}
