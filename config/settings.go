// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mkarlsen/daedalus/cycles"
	"github.com/mkarlsen/daedalus/thinking"
)

// Settings holds all application configuration.
type Settings struct {
	Cycles   cycles.Config
	Thinking thinking.Config
	Tools    ToolSettings
}

// ToolSettings holds tool execution and deduplication configuration.
type ToolSettings struct {
	TimeoutSecs         uint64
	MaxRetries          uint32
	DuplicateWarnAfter  int
	DuplicateBlockAfter int
	AllowedPaths        []string
}

// New creates settings from environment variables, applying defaults.
// Returns an error if a variable contains an invalid value.
func New() (Settings, error) {
	cyclesCfg := cycles.DefaultConfig()
	thinkingCfg := thinking.DefaultConfig()

	var err error
	if cyclesCfg.HistorySize, err = getEnvInt("CYCLE_HISTORY_SIZE", cyclesCfg.HistorySize); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.DuplicateThreshold, err = getEnvInt("CYCLE_DUPLICATE_THRESHOLD", cyclesCfg.DuplicateThreshold); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.FileAccessThreshold, err = getEnvInt("CYCLE_FILE_ACCESS_THRESHOLD", cyclesCfg.FileAccessThreshold); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.SimilarityThreshold, err = getEnvFloat64("CYCLE_SIMILARITY_THRESHOLD", cyclesCfg.SimilarityThreshold); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.SimilarCallsLimit, err = getEnvInt("CYCLE_SIMILAR_CALLS_LIMIT", cyclesCfg.SimilarCallsLimit); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.SearchMinCalls, err = getEnvInt("CYCLE_SEARCH_MIN_CALLS", cyclesCfg.SearchMinCalls); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.SearchHitRateFloor, err = getEnvFloat64("CYCLE_SEARCH_HIT_RATE_FLOOR", cyclesCfg.SearchHitRateFloor); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.EmptyStreakLimit, err = getEnvInt("CYCLE_EMPTY_STREAK_LIMIT", cyclesCfg.EmptyStreakLimit); err != nil {
		return Settings{}, err
	}
	if cyclesCfg.BreakWindow, err = getEnvInt("CYCLE_BREAK_WINDOW", cyclesCfg.BreakWindow); err != nil {
		return Settings{}, err
	}

	if thinkingCfg.WarmupDelay, err = getEnvDuration("THINKING_WARMUP_DELAY", thinkingCfg.WarmupDelay); err != nil {
		return Settings{}, err
	}
	if thinkingCfg.CheckInterval, err = getEnvDuration("THINKING_CHECK_INTERVAL", thinkingCfg.CheckInterval); err != nil {
		return Settings{}, err
	}
	if thinkingCfg.PhraseThreshold, err = getEnvInt("THINKING_PHRASE_THRESHOLD", thinkingCfg.PhraseThreshold); err != nil {
		return Settings{}, err
	}
	if thinkingCfg.MinQuestionLength, err = getEnvInt("THINKING_MIN_QUESTION_LENGTH", thinkingCfg.MinQuestionLength); err != nil {
		return Settings{}, err
	}
	if thinkingCfg.SimilarityThreshold, err = getEnvFloat64("THINKING_SIMILARITY_THRESHOLD", thinkingCfg.SimilarityThreshold); err != nil {
		return Settings{}, err
	}
	if thinkingCfg.RepetitionThreshold, err = getEnvInt("THINKING_REPETITION_THRESHOLD", thinkingCfg.RepetitionThreshold); err != nil {
		return Settings{}, err
	}

	timeoutSecs, err := getEnvUint64("TOOL_TIMEOUT_SECS", 30)
	if err != nil {
		return Settings{}, err
	}
	maxRetries, err := getEnvUint32("TOOL_MAX_RETRIES", 3)
	if err != nil {
		return Settings{}, err
	}
	warnAfter, err := getEnvInt("TOOL_DUPLICATE_WARN_AFTER", 2)
	if err != nil {
		return Settings{}, err
	}
	blockAfter, err := getEnvInt("TOOL_DUPLICATE_BLOCK_AFTER", 3)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Cycles:   cyclesCfg,
		Thinking: thinkingCfg,
		Tools: ToolSettings{
			TimeoutSecs:         timeoutSecs,
			MaxRetries:          maxRetries,
			DuplicateWarnAfter:  warnAfter,
			DuplicateBlockAfter: blockAfter,
			AllowedPaths:        getEnvList("TOOL_ALLOWED_PATHS"),
		},
	}, nil
}

// MustNew creates settings, panicking on invalid environment values.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvUint64(key string, defaultVal uint64) (uint64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
