package domain

import (
	"fmt"

	"github.com/rpattn/entityhistory/internal/schema/validator"
)

// Constraint identifies the rule a field violated.
type Constraint string

const (
	ConstraintRequired     Constraint = "required"
	ConstraintUnknownField Constraint = "unknown_field"
	ConstraintMinimum      Constraint = "minimum"
	ConstraintMaximum      Constraint = "maximum"
	ConstraintMultipleOf   Constraint = "multiple_of"
	ConstraintType         Constraint = "type"
	ConstraintNonEmpty     Constraint = "non_empty"
	ConstraintSyntax       Constraint = "syntax"
)

// ValidationError is returned whenever a record cannot be constructed or decoded.
type ValidationError struct {
	Record     string     `json:"record"`
	Field      string     `json:"field,omitempty"`
	Constraint Constraint `json:"constraint"`
	Message    string     `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s: %s", e.Record, e.Constraint, e.Message)
	}
	return fmt.Sprintf("invalid %s: field %q violates %s: %s", e.Record, e.Field, e.Constraint, e.Message)
}

var keywordConstraints = map[string]Constraint{
	"required":             ConstraintRequired,
	"additionalProperties": ConstraintUnknownField,
	"minimum":              ConstraintMinimum,
	"exclusiveMinimum":     ConstraintMinimum,
	"maximum":              ConstraintMaximum,
	"exclusiveMaximum":     ConstraintMaximum,
	"multipleOf":           ConstraintMultipleOf,
	"minLength":            ConstraintNonEmpty,
	"type":                 ConstraintType,
}

func newValidationError(record string, violation validator.Violation) *ValidationError {
	constraint, ok := keywordConstraints[violation.Keyword]
	if !ok {
		constraint = Constraint(violation.Keyword)
	}
	return &ValidationError{
		Record:     record,
		Field:      violation.Field,
		Constraint: constraint,
		Message:    violation.Message,
	}
}

// validateDocument runs the strict schema check for a raw JSON document.
func validateDocument(k validator.Kind, record string, data []byte) error {
	v, err := validator.Default()
	if err != nil {
		return fmt.Errorf("failed to load %s schema: %w", record, err)
	}

	violations, err := v.Validate(k, data)
	if err != nil {
		return &ValidationError{Record: record, Constraint: ConstraintSyntax, Message: err.Error()}
	}
	if len(violations) > 0 {
		return newValidationError(record, violations[0])
	}
	return nil
}
