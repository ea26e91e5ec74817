package validation

import (
	"strings"
	"testing"

	"chatstore/pkg/errs"
)

func TestSanitizeCollectsAllViolations(t *testing.T) {
	_, err := Sanitize(map[string]Field{
		"chat_id": {Value: "", Type: "string", Required: true},
		"count":   {Value: "five", Type: "number", Required: true},
		"ok":      {Value: "fine", Type: "string"},
	})
	if !errs.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "chat_id") || !strings.Contains(msg, "count") {
		t.Fatalf("error should name both violations: %q", msg)
	}
}

func TestSanitizeDefaults(t *testing.T) {
	out, err := Sanitize(map[string]Field{
		"mode": {Value: "", Type: "string", Default: "private"},
		"name": {Value: "general", Type: "string"},
	})
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if out["mode"] != "private" {
		t.Fatalf("default not applied: %v", out["mode"])
	}
	if out["name"] != "general" {
		t.Fatalf("value lost: %v", out["name"])
	}
}

func TestSanitizeTypeChecks(t *testing.T) {
	ok := map[string]Field{
		"s":  {Value: "x", Type: "string", Required: true},
		"n":  {Value: 3.14, Type: "number", Required: true},
		"b":  {Value: true, Type: "boolean", Required: true},
		"o":  {Value: map[string]any{"k": 1}, Type: "object", Required: true},
		"a1": {Value: []string{"x"}, Type: "array", Required: true},
		"a2": {Value: []map[string]any{{"t": "y"}}, Type: "array", Required: true},
	}
	if _, err := Sanitize(ok); err != nil {
		t.Fatalf("all shapes valid, got %v", err)
	}
	if _, err := Sanitize(map[string]Field{
		"o": {Value: "not an object", Type: "object", Required: true},
	}); !errs.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestCheckLength(t *testing.T) {
	if err := CheckLength("short", 10); err != nil {
		t.Fatalf("short text: %v", err)
	}
	if err := CheckLength(strings.Repeat("x", 11), 10); !errs.IsValidation(err) {
		t.Fatalf("long text: want validation error, got %v", err)
	}
	// rune count, not byte count
	if err := CheckLength(strings.Repeat("é", 10), 10); err != nil {
		t.Fatalf("multibyte text within limit: %v", err)
	}
	// zero max disables the check
	if err := CheckLength(strings.Repeat("x", 1000), 0); err != nil {
		t.Fatalf("disabled limit: %v", err)
	}
}
