package model

// Tool classes used by the repetition heuristics. Read-like tools get
// file-content fingerprinting and per-path access tracking; search-like
// tools feed the hit-rate and empty-streak counters.

var readToolNames = map[string]bool{
	"read_file": true,
	"read":      true,
	"cat":       true,
	"open_file": true,
	"view_file": true,
}

var searchToolNames = map[string]bool{
	"search_files": true,
	"search":       true,
	"grep":         true,
	"glob":         true,
	"ripgrep":      true,
	"find_files":   true,
}

// IsReadTool reports whether the named tool is a read-like operation.
func IsReadTool(name string) bool {
	return readToolNames[name]
}

// IsSearchTool reports whether the named tool is a search-like operation.
func IsSearchTool(name string) bool {
	return searchToolNames[name]
}

// CallPaths extracts the file paths referenced by a tool call's arguments.
// Supports both single-path ("file_path", "path") and multi-path ("paths")
// argument shapes.
func CallPaths(args map[string]any) []string {
	if args == nil {
		return nil
	}
	var paths []string
	for _, key := range []string{"file_path", "path"} {
		if p, ok := args[key].(string); ok && p != "" {
			paths = append(paths, p)
		}
	}
	if list, ok := args["paths"].([]any); ok {
		for _, v := range list {
			if p, ok := v.(string); ok && p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}
