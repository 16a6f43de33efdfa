package steps

import (
	"strings"
	"time"
)

// Field describes one property of a step's data document.
type Field struct {
	Name       string
	Schema     map[string]any
	Required   bool
	Attachment bool
}

// Optional marks the field as not required.
func (f Field) Optional() Field {
	f.Required = false

	return f
}

// Text is a required string with at least minLen characters.
func Text(name string, minLen int) Field {
	if minLen < 1 {
		minLen = 1
	}

	return Field{
		Name:     name,
		Required: true,
		Schema:   map[string]any{"type": "string", "minLength": minLen},
	}
}

// Ref is a required non-empty identifier.
func Ref(name string) Field {
	return Text(name, 1)
}

// Date is a required calendar date (YYYY-MM-DD).
func Date(name string) Field {
	return Field{
		Name:     name,
		Required: true,
		Schema:   map[string]any{"type": "string", "format": "date"},
	}
}

// Clock is a required time of day (HH:MM).
func Clock(name string) Field {
	return Field{
		Name:     name,
		Required: true,
		Schema:   map[string]any{"type": "string", "pattern": `^([01][0-9]|2[0-3]):[0-5][0-9]$`},
	}
}

// Number is a required number greater than or equal to minimum.
func Number(name string, minimum float64) Field {
	return Field{
		Name:     name,
		Required: true,
		Schema:   map[string]any{"type": "number", "minimum": minimum},
	}
}

// Checked is a boolean that must be true.
func Checked(name string) Field {
	return Field{
		Name:     name,
		Required: true,
		Schema:   map[string]any{"type": "boolean", "const": true},
	}
}

// Flag is an optional boolean.
func Flag(name string) Field {
	return Field{
		Name:   name,
		Schema: map[string]any{"type": "boolean"},
	}
}

// Enum is a required string restricted to values.
func Enum(name string, values ...string) Field {
	return Field{
		Name:     name,
		Required: true,
		Schema:   map[string]any{"type": "string", "enum": values},
	}
}

// List is a required array with at least minItems entries of any shape.
func List(name string, minItems int) Field {
	return Field{
		Name:     name,
		Required: true,
		Schema:   map[string]any{"type": "array", "minItems": minItems},
	}
}

// Attachments is a required list of at least minItems attachment references.
// Each entry is either an attachment id or an object carrying an "id".
func Attachments(name string, minItems int) Field {
	return Field{
		Name:       name,
		Required:   true,
		Attachment: true,
		Schema: map[string]any{
			"type":     "array",
			"minItems": minItems,
			"items": map[string]any{
				"anyOf": []any{
					map[string]any{"type": "string", "minLength": 1},
					map[string]any{
						"type":       "object",
						"required":   []string{"id"},
						"properties": map[string]any{"id": map[string]any{"type": "string", "minLength": 1}},
					},
				},
			},
		},
	}
}

// RequireAny fails unless at least one of names carries a value.
func RequireAny(names ...string) Rule {
	return func(data map[string]any, result *ValidationResult) {
		for _, name := range names {
			if present(data[name]) {
				return
			}
		}

		result.Add(names[0], "one of "+strings.Join(names, ", ")+" is required")
	}
}

// RequireBefore fails when later is set while earlier is not. It models
// fields that only unlock after a confirmation on the same step.
func RequireBefore(earlier, later string) Rule {
	return func(data map[string]any, result *ValidationResult) {
		if truthy(data[later]) && !truthy(data[earlier]) {
			result.Add(later, earlier+" must be confirmed before "+later)
		}
	}
}

// NotBefore fails when the date in later is before the date in earlier.
func NotBefore(earlier, later string) Rule {
	return func(data map[string]any, result *ValidationResult) {
		from, okFrom := parseDate(data[earlier])
		to, okTo := parseDate(data[later])

		if okFrom && okTo && to.Before(from) {
			result.Add(later, later+" must not be before "+earlier)
		}
	}
}

func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func truthy(value any) bool {
	b, ok := value.(bool)

	return ok && b
}

func parseDate(value any) (time.Time, bool) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}

	parsed, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}

	return parsed, true
}
