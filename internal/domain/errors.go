package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks.
var (
	ErrValidation       = errors.New("validation failed")
	ErrCatalogIntegrity = errors.New("catalog integrity violated")
	ErrRulePredicate    = errors.New("rule predicate failed")
)

// Field problem reasons.
const (
	ReasonMissing = "missing"
	ReasonType    = "type_mismatch"
)

// FieldError describes one invalid or missing indicator.
type FieldError struct {
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Expected Kind   `json:"expected"`
	Got      string `json:"got,omitempty"`
}

func (f FieldError) String() string {
	if f.Reason == ReasonMissing {
		return fmt.Sprintf("%s: required %s is missing", f.Field, f.Expected)
	}
	return fmt.Sprintf("%s: expected %s, got %s", f.Field, f.Expected, f.Got)
}

// ValidationError is returned when a fact set cannot be built.
// It lists every offending field, sorted by name.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldNames returns the names of the offending fields.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

// CatalogIntegrityError is returned when a rule catalog fails its load-time checks.
type CatalogIntegrityError struct {
	Problems []string `json:"problems"`
}

func (e *CatalogIntegrityError) Error() string {
	return fmt.Sprintf("catalog integrity violated: %s", strings.Join(e.Problems, "; "))
}

func (e *CatalogIntegrityError) Is(target error) bool {
	return target == ErrCatalogIntegrity
}

// RulePredicateError records a rule whose predicate or justification
// failed. It is contained by the evaluator and never returned to callers
// of an evaluation.
type RulePredicateError struct {
	RuleID string
	Stage  string // "predicate" or "justification"
	Err    error
}

func (e *RulePredicateError) Error() string {
	return fmt.Sprintf("rule %s %s failed: %v", e.RuleID, e.Stage, e.Err)
}

func (e *RulePredicateError) Unwrap() error {
	return e.Err
}

func (e *RulePredicateError) Is(target error) bool {
	return target == ErrRulePredicate
}
