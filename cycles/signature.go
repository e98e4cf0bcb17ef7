package cycles

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Signature builds the canonical string for a tool call: the tool name
// followed by "|key:value" for each argument key in lexicographic order.
// Arrays join their elements with commas; nested objects serialize to
// canonical JSON (object keys sorted). Two calls with the same arguments in
// different order produce identical signatures.
func Signature(name string, args map[string]any) string {
	if len(args) == 0 {
		return name
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(stringifyValue(args[k]))
	}
	return b.String()
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringifyValue(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		// encoding/json sorts map keys, giving a canonical form.
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// signatureTokens returns the "key:value" parameter tokens of a signature,
// excluding the tool name. Used for Jaccard similarity between calls.
func signatureTokens(sig string) []string {
	parts := strings.Split(sig, "|")
	if len(parts) <= 1 {
		return nil
	}
	return parts[1:]
}
