// Package explain turns activations and a decision into the traceable
// evaluation result: ordered trace, alerts, critical factors, category
// summary and mitigation plan.
package explain

import (
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Input is everything one evaluation produced before explanation.
type Input struct {
	SchemaVersion       string
	CatalogVersion      string
	RulesEvaluated      int
	DefaultedIndicators []string
	Activations         []domain.Activation
	Outcomes            map[domain.Category]domain.CategoryOutcome
	Decision            decision.Decision
}

// Builder assembles evaluation results. It performs no I/O.
type Builder struct {
	now         func() time.Time
	mitigations map[string][]string
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the clock used to stamp the trace.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithMitigations adds or replaces mitigation actions per factor label.
func WithMitigations(m map[string][]string) Option {
	return func(b *Builder) {
		for k, v := range m {
			b.mitigations[k] = v
		}
	}
}

// NewBuilder creates a builder with the default mitigation catalog.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now:         func() time.Time { return time.Now().UTC() },
		mitigations: DefaultMitigations(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the evaluation result. The returned value shares no
// memory with in.
func (b *Builder) Build(in Input) domain.EvaluationResult {
	now := b.now()

	activations := make([]domain.Activation, len(in.Activations))
	copy(activations, in.Activations)

	outcomes := make(map[domain.Category]domain.CategoryOutcome, len(in.Outcomes))
	for k, v := range in.Outcomes {
		outcomes[k] = v
	}

	factors := criticalFactors(activations)

	var defaulted []string
	if len(in.DefaultedIndicators) > 0 {
		defaulted = append(defaulted, in.DefaultedIndicators...)
	}

	return domain.EvaluationResult{
		SchemaVersion:       in.SchemaVersion,
		CatalogVersion:      in.CatalogVersion,
		FinalTier:           in.Decision.Tier,
		Score:               in.Decision.Score,
		Recommendation:      in.Decision.Recommendation,
		DecidedBy:           in.Decision.DecidedBy,
		TotalImpact:         in.Decision.TotalImpact,
		Activations:         activations,
		Trace:               Trace(activations, now),
		Alerts:              Alerts(activations),
		CriticalFactors:     factorLabels(factors),
		CategoryOutcomes:    outcomes,
		CategorySummary:     Summary(activations, outcomes),
		MitigationPlan:      b.plan(in.Decision.Tier, factors),
		RulesEvaluated:      in.RulesEvaluated,
		DefaultedIndicators: defaulted,
		GeneratedAt:         now,
	}
}

// Trace orders activations by descending absolute impact, ties by sequence.
func Trace(activations []domain.Activation, at time.Time) []domain.TraceEntry {
	trace := make([]domain.TraceEntry, len(activations))
	for i, a := range activations {
		trace[i] = domain.TraceEntry{Activation: a, GeneratedAt: at}
	}
	sort.SliceStable(trace, func(i, j int) bool {
		ai, aj := abs(trace[i].Impact), abs(trace[j].Impact)
		if ai != aj {
			return ai > aj
		}
		return trace[i].Sequence < trace[j].Sequence
	})
	return trace
}

// Alerts returns one alert per activation of moderate severity or worse,
// most severe first.
func Alerts(activations []domain.Activation) []domain.Alert {
	var picked []domain.Activation
	for _, a := range activations {
		if a.Severity.AtLeast(domain.SeverityModerate) {
			picked = append(picked, a)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].Severity.Rank() != picked[j].Severity.Rank() {
			return picked[i].Severity.Rank() > picked[j].Severity.Rank()
		}
		return picked[i].Sequence < picked[j].Sequence
	})

	alerts := make([]domain.Alert, len(picked))
	for i, a := range picked {
		alerts[i] = domain.Alert{
			Severity: a.Severity,
			RuleID:   a.RuleID,
			Category: a.Category,
			Message:  a.Justification,
		}
	}
	return alerts
}

type factor struct {
	label    string
	severity domain.Severity
	first    int
}

// criticalFactors deduplicates the factor labels of high and critical
// activations, keeping each label's worst severity, in activation order.
func criticalFactors(activations []domain.Activation) []factor {
	var out []factor
	index := make(map[string]int)
	for _, a := range activations {
		if !a.Severity.AtLeast(domain.SeverityHigh) {
			continue
		}
		label := a.Factor
		if label == "" {
			label = a.RuleName
		}
		if i, ok := index[label]; ok {
			if a.Severity.Rank() > out[i].severity.Rank() {
				out[i].severity = a.Severity
			}
			continue
		}
		index[label] = len(out)
		out = append(out, factor{label: label, severity: a.Severity, first: a.Sequence})
	}
	return out
}

func factorLabels(factors []factor) []string {
	labels := make([]string, len(factors))
	for i, f := range factors {
		labels[i] = f.label
	}
	return labels
}

// Summary builds the per-category table in fixed category order.
func Summary(activations []domain.Activation, outcomes map[domain.Category]domain.CategoryOutcome) []domain.CategorySummary {
	rows := make([]domain.CategorySummary, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		row := domain.CategorySummary{Category: c, Label: c.Label(), Level: domain.LevelLow}
		for _, a := range activations {
			if a.Category != c {
				continue
			}
			row.Activations++
			if a.Impact > 0 {
				row.RiskImpact += a.Impact
			} else {
				row.Relief += a.Impact
			}
		}
		row.AggregateImpact = row.RiskImpact + row.Relief
		if o, ok := outcomes[c]; ok {
			row.Level = o.Level
		}
		rows = append(rows, row)
	}
	return rows
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
