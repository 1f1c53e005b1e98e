package rules

import (
	"fmt"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FailureHook receives rule failures contained during evaluation.
type FailureHook func(*domain.RulePredicateError)

type evalConfig struct {
	logger    *slog.Logger
	onFailure FailureHook
}

// EvalOption configures Evaluate.
type EvalOption func(*evalConfig)

// WithLogger sets the logger used for contained rule failures.
func WithLogger(l *slog.Logger) EvalOption {
	return func(c *evalConfig) { c.logger = l }
}

// WithFailureHook registers a callback for contained rule failures.
func WithFailureHook(fn FailureHook) EvalOption {
	return func(c *evalConfig) { c.onFailure = fn }
}

// Evaluate runs every catalog rule against facts in catalog order and
// returns the activations, numbered from 1.
//
// It is a single pass: rules read the fact set only, so no rule can make
// another fire. A rule whose predicate or justification returns an error
// or panics does not activate; the failure is logged and handed to the
// failure hook, and evaluation continues with the next rule.
func Evaluate(facts domain.FactSet, catalog *Catalog, opts ...EvalOption) []domain.Activation {
	cfg := evalConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	activations := make([]domain.Activation, 0, len(catalog.rules)/2)
	seq := 0

	for _, r := range catalog.rules {
		fired, err := runPredicate(r, facts)
		if err != nil {
			cfg.fail(&domain.RulePredicateError{RuleID: r.ID, Stage: "predicate", Err: err})
			continue
		}
		if !fired {
			continue
		}

		text, err := runJustify(r, facts)
		if err != nil {
			cfg.fail(&domain.RulePredicateError{RuleID: r.ID, Stage: "justification", Err: err})
			continue
		}

		seq++
		activations = append(activations, domain.Activation{
			Sequence:      seq,
			RuleID:        r.ID,
			RuleName:      r.Name,
			Category:      r.Category,
			Impact:        r.Impact,
			Severity:      r.Severity,
			Factor:        r.FactorLabel(),
			Justification: text,
		})
	}

	return activations
}

func (c evalConfig) fail(err *domain.RulePredicateError) {
	c.logger.Warn("rule failed, skipping",
		"rule_id", err.RuleID,
		"stage", err.Stage,
		"error", err.Err,
	)
	if c.onFailure != nil {
		c.onFailure(err)
	}
}

func runPredicate(r domain.Rule, facts domain.FactSet) (fired bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			fired, err = false, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Predicate(facts)
}

func runJustify(r domain.Rule, facts domain.FactSet) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Justify(facts)
}
