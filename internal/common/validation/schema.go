package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// FieldSchema describes the accepted shape of a flat form or JSON input.
type FieldSchema struct {
	Properties map[string]Property
	Required   []string
}

type Property struct {
	Type      string   // "string" is the only type form inputs carry
	NotBlank  bool     // reject values that are empty after trimming
	MinLength *int     // counted in runes
	MaxLength *int     // counted in runes
	Enum      []string // exact match
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validate checks input against schema. Fields not named by the schema are
// ignored.
func Validate(input map[string]string, schema FieldSchema) *ValidationResult {
	errs := []ValidationError{}

	for _, field := range schema.Required {
		if _, ok := input[field]; !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "required field missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}

	for name, prop := range schema.Properties {
		value, ok := input[name]
		if !ok {
			continue
		}
		errs = append(errs, validateField(name, value, prop)...)
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

func validateField(name, value string, prop Property) []ValidationError {
	errs := []ValidationError{}

	if prop.NotBlank && strings.TrimSpace(value) == "" {
		return append(errs, ValidationError{
			Field:   name,
			Message: "value must not be blank",
			Code:    "BLANK_VALUE",
		})
	}

	length := utf8.RuneCountInString(value)
	if prop.MinLength != nil && length < *prop.MinLength {
		errs = append(errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("value must be at least %d characters", *prop.MinLength),
			Code:    "MIN_LENGTH_VIOLATION",
		})
	}
	if prop.MaxLength != nil && length > *prop.MaxLength {
		errs = append(errs, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("value must be at most %d characters", *prop.MaxLength),
			Code:    "MAX_LENGTH_VIOLATION",
		})
	}

	if len(prop.Enum) > 0 {
		found := false
		for _, allowed := range prop.Enum {
			if value == allowed {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("value must be one of %v", prop.Enum),
				Code:    "INVALID_ENUM_VALUE",
			})
		}
	}

	return errs
}

// IntPtr is a helper for MinLength/MaxLength literals.
func IntPtr(v int) *int {
	return &v
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}
