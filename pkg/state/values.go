package state

import "fmt"

// Typed accessors tolerate both native Go values and the shapes produced
// by JSON decoding, so callers read the same way from every Store.

// String returns the string stored at key, or "".
func (s State) String(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

// Bool returns the bool stored at key, or false.
func (s State) Bool(key string) bool {
	v, _ := s.Data[key].(bool)
	return v
}

// Float returns the number stored at key as float64, or 0.
func (s State) Float(key string) float64 {
	switch v := s.Data[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Int returns the number stored at key as int, or 0.
func (s State) Int(key string) int {
	switch v := s.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return 0
}

// Strings returns the string list stored at key. Decoded []any values are
// converted element by element; non-string elements are formatted.
func (s State) Strings(key string) []string {
	switch v := s.Data[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			} else {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	}
	return nil
}

// Len returns the length of a list value at key, or 0.
func (s State) Len(key string) int {
	switch v := s.Data[key].(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	case []map[string]any:
		return len(v)
	}
	return 0
}
