// Package decision derives category outcomes and the final risk tier
// from rule activations.
package decision

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Baseline is the score of a supplier for which no rule fired.
const Baseline = 100

// Policy is the decision policy of a rule catalog.
type Policy interface {
	MetaRules() []domain.MetaRule
	ScoreBands() []domain.ScoreBand
	Thresholds(domain.Category) domain.Thresholds
}

// Processor resolves the final tier. It holds only the immutable policy it
// was built with, so one processor may serve concurrent evaluations.
type Processor struct {
	metaRules  []domain.MetaRule
	bands      []domain.ScoreBand
	thresholds func(domain.Category) domain.Thresholds
}

// NewProcessor creates a processor for the given policy.
func NewProcessor(policy Policy) *Processor {
	return &Processor{
		metaRules:  policy.MetaRules(),
		bands:      policy.ScoreBands(),
		thresholds: policy.Thresholds,
	}
}

// Decision is the resolved final classification.
type Decision struct {
	Tier           domain.Tier `json:"tier"`
	Recommendation string      `json:"recommendation"`
	DecidedBy      string      `json:"decidedBy"`
	Score          int         `json:"score"`
	TotalImpact    int         `json:"totalImpact"`
}

// Process aggregates activations and resolves the final decision.
func (p *Processor) Process(activations []domain.Activation) (map[domain.Category]domain.CategoryOutcome, Decision) {
	outcomes := Aggregate(activations, p.thresholds)
	return outcomes, p.Resolve(outcomes, activations)
}

// Resolve walks the meta-rules in priority order; the first match decides.
// When none matches, the score bands decide.
func (p *Processor) Resolve(outcomes map[domain.Category]domain.CategoryOutcome, activations []domain.Activation) Decision {
	score, total := Score(activations)
	d := Decision{Score: score, TotalImpact: total}

	for _, m := range p.metaRules {
		if matches(m, outcomes, activations) {
			d.Tier = m.Tier
			d.Recommendation = m.Recommendation
			d.DecidedBy = m.ID
			return d
		}
	}

	band := matchBand(score, p.bands)
	d.Tier = band.Tier
	d.Recommendation = band.Recommendation
	d.DecidedBy = domain.DecidedByScoreBand
	return d
}

// Score returns clamp(Baseline - sum(impacts), 0, 100) and the raw sum.
// Risk-increasing impacts erode the baseline; risk-reducing ones restore it.
func Score(activations []domain.Activation) (score, total int) {
	for _, a := range activations {
		total += a.Impact
	}
	score = Baseline - total
	switch {
	case score < 0:
		score = 0
	case score > 100:
		score = 100
	}
	return score, total
}

func matches(m domain.MetaRule, outcomes map[domain.Category]domain.CategoryOutcome, activations []domain.Activation) bool {
	if len(m.Categories) > 0 {
		hit := false
		for _, c := range m.Categories {
			o, ok := outcomes[c]
			if !ok || o.Level.Rank() < m.MinLevel.Rank() {
				continue
			}
			if m.RequireSeverity != "" && !hasSeverity(activations, c, m.RequireSeverity) {
				continue
			}
			hit = true
			break
		}
		if !hit {
			return false
		}
	}

	if len(m.RuleIDs) > 0 && !anyFired(activations, m.RuleIDs) {
		return false
	}

	return len(m.Categories) > 0 || len(m.RuleIDs) > 0
}

func hasSeverity(activations []domain.Activation, c domain.Category, min domain.Severity) bool {
	for _, a := range activations {
		if a.Category == c && a.Severity.AtLeast(min) {
			return true
		}
	}
	return false
}

func anyFired(activations []domain.Activation, ids []string) bool {
	for _, a := range activations {
		for _, id := range ids {
			if a.RuleID == id {
				return true
			}
		}
	}
	return false
}

// matchBand returns the first band, highest minimum first, that the score
// reaches. Scores below every band take the lowest band.
func matchBand(score int, bands []domain.ScoreBand) domain.ScoreBand {
	for _, b := range bands {
		if score >= b.Min {
			return b
		}
	}
	if len(bands) > 0 {
		return bands[len(bands)-1]
	}
	return domain.ScoreBand{Tier: domain.TierHigh}
}
