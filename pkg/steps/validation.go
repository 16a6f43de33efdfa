package steps

import (
	"fmt"
	"strings"
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult collects field errors produced by Validate.
type ValidationResult struct {
	Errors []FieldError `json:"errors"`
}

// Valid reports whether no field errors were collected.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Add appends a field error.
func (r *ValidationResult) Add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// Has reports whether the result carries an error for field.
func (r ValidationResult) Has(field string) bool {
	for _, fieldErr := range r.Errors {
		if fieldErr.Field == field {
			return true
		}
	}

	return false
}

func (r ValidationResult) String() string {
	parts := make([]string, 0, len(r.Errors))

	for _, fieldErr := range r.Errors {
		parts = append(parts, fieldErr.String())
	}

	return strings.Join(parts, "; ")
}
