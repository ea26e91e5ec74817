// Package validation implements the declarative shape checking every write
// goes through before any I/O: each input field declares its value, expected
// type, whether it is required, and an optional default. A missing required
// field or a type mismatch aborts the operation with a validation error and
// no side effect.
package validation

import (
	"fmt"
	"strings"

	"chatstore/pkg/errs"
)

// Field declares the expected shape of one input value.
type Field struct {
	Value    any
	Type     string // string | number | boolean | object | array
	Required bool
	Default  any
}

// Sanitize checks every declared field and returns the resolved values:
// present values pass through after a type check, absent optional values
// resolve to their default. All violations are collected into a single
// validation error.
func Sanitize(fields map[string]Field) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	var violations []string
	for name, f := range fields {
		if !HasValue(f.Value) {
			if f.Required {
				violations = append(violations, fmt.Sprintf("%s is required", name))
				continue
			}
			out[name] = f.Default
			continue
		}
		if f.Type != "" && !typeMatches(f.Value, f.Type) {
			violations = append(violations, fmt.Sprintf("%s: expected %s", name, f.Type))
			continue
		}
		out[name] = f.Value
	}
	if len(violations) > 0 {
		return nil, errs.Validation("%s", strings.Join(violations, "; "))
	}
	return out, nil
}

// HasValue reports whether v carries a usable value. nil, empty strings,
// and typed nil maps/slices count as absent.
func HasValue(v any) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case string:
		return vv != ""
	case []string:
		return vv != nil
	case []any:
		return vv != nil
	case []map[string]any:
		return vv != nil
	case map[string]any:
		return vv != nil
	default:
		return true
	}
}

// CheckLength enforces a maximum rune count on free text.
func CheckLength(text string, max int) error {
	if max > 0 && len([]rune(text)) > max {
		return errs.Validation("text length %d exceeds max %d", len([]rune(text)), max)
	}
	return nil
}

func typeMatches(v any, t string) bool {
	switch strings.ToLower(t) {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		switch v.(type) {
		case []any, []string, []map[string]any:
			return true
		default:
			return false
		}
	default:
		return true
	}
}
