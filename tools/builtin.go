// Built-in read and search tools.
//
// These are thin filesystem wrappers kept in the core so the read-like and
// search-like repetition heuristics have first-party tools to observe.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Path validation and security checks hidden
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultMaxFileSize limits read_file to 1MB.
	DefaultMaxFileSize = 1024 * 1024
	// DefaultSearchMaxResults is the default maximum results per search.
	DefaultSearchMaxResults = 100
)

// ReadFileTool reads file contents.
type ReadFileTool struct {
	BaseTool
	allowedPaths []string
	maxSizeBytes int64
}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool(maxSizeBytes int64) *ReadFileTool {
	return &ReadFileTool{maxSizeBytes: maxSizeBytes}
}

// WithAllowedPaths sets the allowed path prefixes.
func (t *ReadFileTool) WithAllowedPaths(paths []string) *ReadFileTool {
	t.allowedPaths = paths
	return t
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_file",
		Description: "Read the contents of a file from the filesystem",
		Parameters: []ToolParameter{
			{Name: "file_path", ParamType: "string", Description: "Path to the file to read", Required: true},
		},
	}
}

type readFileArgs struct {
	FilePath string `json:"file_path"`
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args json.RawMessage) error {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.FilePath == "" {
		return fmt.Errorf("file_path cannot be empty")
	}
	return nil
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if !pathAllowed(a.FilePath, t.allowedPaths) {
		return FailureResultf("path not allowed: %s", a.FilePath), nil
	}

	info, err := os.Stat(a.FilePath)
	if err != nil {
		return FailureResult(fmt.Errorf("cannot access file: %w", err)), nil
	}
	if t.maxSizeBytes > 0 && info.Size() > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (limit %d)", info.Size(), t.maxSizeBytes), nil
	}

	data, err := os.ReadFile(a.FilePath)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}
	return SuccessResult(string(data)), nil
}

// SearchFilesTool finds files matching a glob pattern. Returns paths only,
// no content; hidden directories are skipped.
type SearchFilesTool struct {
	BaseTool
	maxResults int
}

// NewSearchFilesTool creates a new search tool.
// If maxResults <= 0, DefaultSearchMaxResults is used.
func NewSearchFilesTool(maxResults int) *SearchFilesTool {
	if maxResults <= 0 {
		maxResults = DefaultSearchMaxResults
	}
	return &SearchFilesTool{maxResults: maxResults}
}

// Metadata returns tool metadata.
func (t *SearchFilesTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "search_files",
		Description: "Find files matching a glob pattern. Returns file paths only (no content). Use for discovery, then read_file to load content.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "Glob pattern (e.g., '*.go', 'src/*.ts')", Required: true},
			{Name: "path", ParamType: "string", Description: "Base directory to search from (default: current directory)", Required: false},
		},
	}
}

type searchFilesArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

// Validate validates the arguments.
func (t *SearchFilesTool) Validate(args json.RawMessage) error {
	var a searchFilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	return nil
}

// Execute finds matching files.
func (t *SearchFilesTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a searchFilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	base := a.Path
	if base == "" {
		base = "."
	}

	matches, err := filepath.Glob(filepath.Join(base, a.Pattern))
	if err != nil {
		return FailureResult(fmt.Errorf("invalid pattern: %w", err)), nil
	}

	var results []string
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}
		results = append(results, m)
		if len(results) >= t.maxResults {
			break
		}
	}
	sort.Strings(results)

	if len(results) == 0 {
		return SuccessResult(""), nil
	}
	return SuccessResult(strings.Join(results, "\n")), nil
}

// WithDefaults creates a registry with the built-in tools registered.
// Returns error if any tool registration fails.
func WithDefaults() (*Registry, error) {
	registry := NewRegistry()

	builtins := []Tool{
		NewReadFileTool(DefaultMaxFileSize),
		NewSearchFilesTool(DefaultSearchMaxResults),
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register default tools: %w", err)
		}
	}

	return registry, nil
}
