package toolargs

import (
	"encoding/json"
	"strings"
)

// IDs normalizes a filter value into a non-empty list of trimmed identifiers,
// or nil when the value carries no usable identifier. Duplicates are removed
// keeping the first occurrence.
func IDs(v any) []string {
	if isFalsy(v) {
		return nil
	}
	switch x := v.(type) {
	case string:
		return idsFromString(x)
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return idsFromList(items)
	case []any:
		return idsFromList(x)
	}
	return idsFromString(scalarString(v))
}

func idsFromString(s string) []string {
	s = strings.TrimSpace(s)
	if isPlaceholder(s) {
		return nil
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		var items []any
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			return idsFromList(items)
		}
	}
	return []string{s}
}

func idsFromList(items []any) []string {
	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if isFalsy(item) {
			continue
		}
		s := strings.TrimSpace(scalarString(item))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(s) {
	case "", "none", "null", "nil", "[]":
		return true
	}
	return false
}

// isFalsy reports values that mean "nothing": nil, false, zero, and empty
// strings, lists or objects.
func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case float64:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
