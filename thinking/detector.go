// Package thinking detects reasoning loops in streamed model output.
//
// The detector accumulates streamed text and, on a delay-then-interval timer
// schedule, scans for reconsideration phrases and repeated statements.
// Detections are advisory; the configured callback decides what to do.
//
// Information Hiding:
// - Buffer, timers, and state flags hidden behind AddChunk/Stop/Reset
// - Pattern matching and grouping heuristics hidden in the checks
package thinking

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkarlsen/daedalus/internal/similarity"
)

// Detection describes one detected loop with a human-readable reason.
type Detection struct {
	Kind   string
	Reason string
	Count  int
}

// Loop kinds reported to the callback.
const (
	KindReconsideration   = "reconsideration"
	KindRepeatedQuestions = "repeated_questions"
	KindRepeatedActions   = "repeated_actions"
)

// Config holds the detection schedule and thresholds.
type Config struct {
	WarmupDelay         time.Duration // delay before the first check
	CheckInterval       time.Duration // interval between recurring checks
	PhraseThreshold     int           // reconsideration phrases before triggering
	MinQuestionLength   int           // shorter questions are ignored
	SimilarityThreshold float64       // word-set Jaccard floor for grouping
	RepetitionThreshold int           // group size that triggers
}

// DefaultConfig returns the default schedule and thresholds.
func DefaultConfig() Config {
	return Config{
		WarmupDelay:         15 * time.Second,
		CheckInterval:       5 * time.Second,
		PhraseThreshold:     3,
		MinQuestionLength:   12,
		SimilarityThreshold: 0.7,
		RepetitionThreshold: 3,
	}
}

var reconsiderPattern = regexp.MustCompile(
	`(?i)\b(reconsider|rethink|revisit|go back to|start over|return to)\b`)

var actionPattern = regexp.MustCompile(
	`(?i)\b(?:i will|i'll|i should|let me)\b([^.!?\n]{4,160})`)

// Detector watches one generation turn's streamed thinking text. Created
// once per agent instance and reset between turns; safe for concurrent use.
type Detector struct {
	mu sync.Mutex
	// cbMu is held across a committed detection's callback; Stop and Reset
	// acquire it to wait out an in-flight callback. Always taken before mu.
	cbMu   sync.Mutex
	cfg    Config
	logger *zap.Logger
	onLoop func(Detection)

	buf        strings.Builder
	monitoring bool
	detected   bool
	stopped    bool
	gen        uint64
	warmup     *time.Timer
	check      *time.Timer
}

// NewDetector creates a detector that invokes onLoop when a loop is found.
// A nil logger defaults to a no-op logger.
func NewDetector(cfg Config, onLoop func(Detection), logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		cfg:    cfg,
		logger: logger,
		onLoop: onLoop,
	}
}

// AddChunk appends streamed text to the buffer. The first non-empty chunk
// transitions the detector to monitoring and arms the one-shot warmup timer;
// recurring checks start when it expires.
func (d *Detector) AddChunk(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.detected {
		return
	}
	d.buf.WriteString(text)
	if !d.monitoring && strings.TrimSpace(d.buf.String()) != "" {
		d.monitoring = true
		gen := d.gen
		d.warmup = time.AfterFunc(d.cfg.WarmupDelay, func() { d.onWarmup(gen) })
	}
}

// onWarmup runs the first check immediately and starts the recurring timer.
// A timer goroutine can be past AfterFunc when Reset runs, so every timer
// carries the generation it was armed in and bails if a new one started.
func (d *Detector) onWarmup(gen uint64) {
	d.mu.Lock()
	if d.stopped || d.detected || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.check = time.AfterFunc(d.cfg.CheckInterval, func() { d.onTick(gen) })
	d.mu.Unlock()

	d.runCheck(gen)
}

func (d *Detector) onTick(gen uint64) {
	d.mu.Lock()
	if d.stopped || d.detected || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.check = time.AfterFunc(d.cfg.CheckInterval, func() { d.onTick(gen) })
	d.mu.Unlock()

	d.runCheck(gen)
}

// runCheck applies the loop checks in order; the first match stops the
// timers and invokes the callback. A panic inside a check is logged and
// treated as no signal.
func (d *Detector) runCheck(gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("thinking loop check failed", zap.Any("panic", r))
		}
	}()

	d.mu.Lock()
	if d.stopped || d.detected || gen != d.gen {
		d.mu.Unlock()
		return
	}
	text := d.buf.String()
	d.mu.Unlock()

	detection, found := checkReconsideration(text, d.cfg)
	if !found {
		detection, found = checkRepeatedQuestions(text, d.cfg)
	}
	if !found {
		detection, found = checkRepeatedActions(text, d.cfg)
	}
	if !found {
		return
	}

	d.cbMu.Lock()
	defer d.cbMu.Unlock()

	d.mu.Lock()
	if d.stopped || d.detected || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.detected = true
	d.stopTimersLocked()
	callback := d.onLoop
	d.mu.Unlock()

	d.logger.Info("thinking loop detected",
		zap.String("kind", detection.Kind), zap.Int("count", detection.Count))
	if callback != nil {
		callback(detection)
	}
}

// Stop cancels both timers. Idempotent; no callback fires after Stop
// returns, and a detection committed before Stop finishes its callback
// before Stop returns. Must not be called from inside the callback.
func (d *Detector) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.stopTimersLocked()
	d.mu.Unlock()

	// Barrier: wait for an in-flight callback to finish.
	d.cbMu.Lock()
	d.cbMu.Unlock()
}

func (d *Detector) stopTimersLocked() {
	if d.warmup != nil {
		d.warmup.Stop()
		d.warmup = nil
	}
	if d.check != nil {
		d.check.Stop()
		d.check = nil
	}
}

// Reset stops the detector and clears the buffer and flags so it can watch a
// new generation turn. Bumping the generation invalidates timer goroutines
// armed for the old turn, even ones already past their timer when Reset runs.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.gen++
	d.stopped = false
	d.detected = false
	d.monitoring = false
	d.stopTimersLocked()
	d.buf.Reset()
	d.mu.Unlock()

	// Barrier: wait for an in-flight callback to finish.
	d.cbMu.Lock()
	d.cbMu.Unlock()
}

// Detected reports whether a loop has been reported this turn.
func (d *Detector) Detected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detected
}

// checkReconsideration counts reconsideration-phrase matches across the
// whole buffer.
func checkReconsideration(text string, cfg Config) (Detection, bool) {
	matches := reconsiderPattern.FindAllString(text, -1)
	if cfg.PhraseThreshold <= 0 || len(matches) < cfg.PhraseThreshold {
		return Detection{}, false
	}
	return Detection{
		Kind:   KindReconsideration,
		Count:  len(matches),
		Reason: fmt.Sprintf("reconsidered its approach %d times", len(matches)),
	}, true
}

// checkRepeatedQuestions extracts sentences ending in "?" and groups them by
// word-set similarity; a group reaching the repetition threshold triggers.
func checkRepeatedQuestions(text string, cfg Config) (Detection, bool) {
	var questions []string
	for _, sentence := range splitSentences(text) {
		if strings.HasSuffix(sentence, "?") && len(sentence) > cfg.MinQuestionLength {
			questions = append(questions, sentence)
		}
	}
	count := largestSimilarGroup(questions, cfg.SimilarityThreshold)
	if count < cfg.RepetitionThreshold {
		return Detection{}, false
	}
	return Detection{
		Kind:   KindRepeatedQuestions,
		Count:  count,
		Reason: fmt.Sprintf("asked essentially the same question %d times", count),
	}, true
}

// checkRepeatedActions extracts "I will/I'll/I should/let me ..." clauses
// and applies the same grouping logic as questions.
func checkRepeatedActions(text string, cfg Config) (Detection, bool) {
	var actions []string
	for _, m := range actionPattern.FindAllStringSubmatch(text, -1) {
		clause := strings.TrimSpace(m[1])
		if clause != "" {
			actions = append(actions, clause)
		}
	}
	count := largestSimilarGroup(actions, cfg.SimilarityThreshold)
	if count < cfg.RepetitionThreshold {
		return Detection{}, false
	}
	return Detection{
		Kind:   KindRepeatedActions,
		Count:  count,
		Reason: fmt.Sprintf("announced the same next action %d times", count),
	}, true
}

// largestSimilarGroup clusters statements greedily: each statement joins the
// first group whose representative shares enough words, else starts its own.
// Returns the size of the largest group.
func largestSimilarGroup(statements []string, threshold float64) int {
	type group struct {
		words []string
		size  int
	}
	var groups []*group
	for _, stmt := range statements {
		words := similarity.Words(stmt)
		placed := false
		for _, g := range groups {
			if similarity.Jaccard(words, g.words) >= threshold {
				g.size++
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &group{words: words, size: 1})
		}
	}
	largest := 0
	for _, g := range groups {
		if g.size > largest {
			largest = g.size
		}
	}
	return largest
}

// splitSentences breaks text on sentence terminators, keeping the terminator
// attached to the sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			sentence := strings.TrimSpace(text[start : i+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
