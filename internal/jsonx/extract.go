// Package jsonx provides JSON extraction utilities for model output.
//
// Models sometimes return tool arguments as a string: a JSON object wrapped
// in commentary or markdown fences. This package extracts the object.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract finds and returns the JSON object portion of a string.
// It handles common model output patterns:
// 1. Pure JSON - returns the full input
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object embedded in text - finds first '{' and last '}'
//
// Limitations:
// - Only handles JSON objects, not arrays
// - Uses simple brace matching, not full JSON parsing
// - May fail if braces appear in strings or are unbalanced
func Extract(input string) (string, error) {
	input = stripMarkdownCodeBlocks(input)

	// Try full input first
	var test any
	if err := json.Unmarshal([]byte(input), &test); err == nil {
		return input, nil
	}

	// Try to find and extract JSON from the input
	start := strings.Index(input, "{")
	if start != -1 {
		end := strings.LastIndex(input, "}")
		if end != -1 && end > start {
			jsonStr := input[start : end+1]
			var test any
			if err := json.Unmarshal([]byte(jsonStr), &test); err == nil {
				return jsonStr, nil
			}
		}
	}

	// Create a preview for the error message
	preview := input
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON: %q", preview)
}

// stripMarkdownCodeBlocks removes markdown code block markers.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeBlocks(input string) string {
	trimmed := strings.TrimSpace(input)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimSpace(trimmed)
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	return trimmed
}
