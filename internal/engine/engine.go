// Package engine wires the fact set, rule evaluator, decision processor
// and explanation builder into one evaluation pipeline.
package engine

import (
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/explain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

type options struct {
	builder  *explain.Builder
	evalOpts []rules.EvalOption
}

// Option configures a pipeline run.
type Option func(*options)

// WithBuilder sets the explanation builder.
func WithBuilder(b *explain.Builder) Option {
	return func(o *options) { o.builder = b }
}

// WithEvalOptions passes options through to the rule evaluator.
func WithEvalOptions(opts ...rules.EvalOption) Option {
	return func(o *options) { o.evalOpts = append(o.evalOpts, opts...) }
}

// Evaluate runs the pipeline on a validated fact set. It holds no state
// between calls: the result depends only on facts and catalog.
func Evaluate(facts domain.FactSet, catalog *rules.Catalog, opts ...Option) domain.EvaluationResult {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.builder == nil {
		o.builder = explain.NewBuilder()
	}

	activations := rules.Evaluate(facts, catalog, o.evalOpts...)
	outcomes, d := decision.NewProcessor(catalog).Process(activations)

	return o.builder.Build(explain.Input{
		SchemaVersion:       facts.SchemaVersion(),
		CatalogVersion:      catalog.Version(),
		RulesEvaluated:      catalog.Len(),
		DefaultedIndicators: facts.Defaulted(),
		Activations:         activations,
		Outcomes:            outcomes,
		Decision:            d,
	})
}

// EvaluateSupplier validates raw indicators against the catalog's schema
// and evaluates them. A validation failure returns a zero result and a
// *domain.ValidationError.
func EvaluateSupplier(raw map[string]any, catalog *rules.Catalog, opts ...Option) (domain.EvaluationResult, error) {
	facts, err := domain.NewFactSet(catalog.Schema(), raw)
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	return Evaluate(facts, catalog, opts...), nil
}
