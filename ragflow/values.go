package ragflow

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// intValue coerces decoded JSON numbers (and numeric strings) to int.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil && isInt(f) {
			return int(f), true
		}
	case float64:
		if isInt(n) {
			return int(n), true
		}
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// isInt reports whether f is integral and within the int range.
func isInt(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt && f < -math.MinInt
}

// stringValue renders scalar JSON values as strings; null and composite
// values yield "".
func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// StringField returns m[key] rendered as a trimmed string.
func StringField(m map[string]any, key string) string {
	return strings.TrimSpace(stringValue(m[key]))
}
