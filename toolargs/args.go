package toolargs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidArgument is wrapped by every argument coercion failure.
var ErrInvalidArgument = errors.New("invalid argument")

// Args is a decoded tool-call argument bag.
type Args map[string]any

// Decode parses raw tool-call arguments. Empty input and JSON null yield an
// empty bag; anything other than a JSON object is an error. Numbers are kept
// as json.Number.
func Decode(raw json.RawMessage) (Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Args{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var args Args
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", ErrInvalidArgument, err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// IDs normalizes the named filter argument with IDs.
func (a Args) IDs(key string) []string {
	return IDs(a[key])
}

// String returns the named argument as a trimmed string. Absent and null
// values, and placeholders such as "null", yield def.
func (a Args) String(key, def string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch v.(type) {
	case []any, map[string]any:
		return "", fmt.Errorf("%w: %s must be a string, got %s", ErrInvalidArgument, key, typeName(v))
	}
	s := strings.TrimSpace(scalarString(v))
	if isPlaceholder(s) {
		return def, nil
	}
	return s, nil
}

// Int returns the named argument as an integer. Absent, null and empty values
// yield def.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	invalid := func() (int, error) {
		return 0, fmt.Errorf("%w: %s must be an integer, got %s", ErrInvalidArgument, key, describe(v))
	}

	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i), nil
		}
		f, err := x.Float64()
		if err != nil || !isInt(f) {
			return invalid()
		}
		return int(f), nil
	case float64:
		if !isInt(x) {
			return invalid()
		}
		return int(x), nil
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case string:
		s := strings.TrimSpace(x)
		if isPlaceholder(s) {
			return def, nil
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !isInt(f) {
			return invalid()
		}
		return int(f), nil
	}
	return invalid()
}

// isInt reports whether f is integral and converts to int without overflow.
func isInt(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt && f < -math.MinInt
}

// Float returns the named argument as a float. Absent, null and empty values
// yield def.
func (a Args) Float(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	invalid := func() (float64, error) {
		return 0, fmt.Errorf("%w: %s must be a number, got %s", ErrInvalidArgument, key, describe(v))
	}

	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return invalid()
		}
		return f, nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if isPlaceholder(s) {
			return def, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return invalid()
		}
		return f, nil
	}
	return invalid()
}

// Bool returns the named argument as a boolean. Strings such as "true",
// "no" and "1" are accepted, as are numbers (non-zero is true). Absent, null
// and empty values yield def.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case json.Number, float64, int, int64:
		return !isFalsy(x), nil
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "", "none", "null":
			return def, nil
		case "true", "t", "yes", "y", "on", "1":
			return true, nil
		case "false", "f", "no", "n", "off", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s must be a boolean, got %s", ErrInvalidArgument, key, describe(v))
}

// scalarString renders a decoded JSON value as a string. Composite values
// are rendered as compact JSON.
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func describe(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case json.Number:
		return x.String()
	}
	return typeName(v)
}

func typeName(v any) string {
	switch v.(type) {
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case string:
		return "string"
	}
	return fmt.Sprintf("%T", v)
}
