package decision

import (
	"math/rand"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

type testPolicy struct {
	metas      []domain.MetaRule
	bands      []domain.ScoreBand
	thresholds map[domain.Category]domain.Thresholds
}

func (p testPolicy) MetaRules() []domain.MetaRule   { return p.metas }
func (p testPolicy) ScoreBands() []domain.ScoreBand { return p.bands }
func (p testPolicy) Thresholds(c domain.Category) domain.Thresholds {
	if t, ok := p.thresholds[c]; ok {
		return t
	}
	return domain.DefaultThresholds()
}

func gatingPolicy() testPolicy {
	gating := []domain.Category{domain.CategoryFinancial, domain.CategoryLegal}
	return testPolicy{
		metas: []domain.MetaRule{
			{ID: "MR-001", Categories: gating, MinLevel: domain.LevelHigh, RequireSeverity: domain.SeverityCritical,
				Tier: domain.TierCritical, Recommendation: "reject"},
			{ID: "MR-002", Categories: gating, MinLevel: domain.LevelHigh,
				Tier: domain.TierHigh, Recommendation: "reject, re-evaluate after remediation"},
			{ID: "MR-003", Categories: []domain.Category{domain.CategoryOperational}, MinLevel: domain.LevelMedium,
				Tier: domain.TierMedium, Recommendation: "approve with conditions: mitigation plan + periodic review"},
		},
		bands: []domain.ScoreBand{
			{Min: 80, Tier: domain.TierLow, Recommendation: "approve"},
			{Min: 60, Tier: domain.TierMedium, Recommendation: "approve with conditions"},
			{Min: 0, Tier: domain.TierHigh, Recommendation: "reject"},
		},
		thresholds: map[domain.Category]domain.Thresholds{
			domain.CategoryOperational:  {Medium: 0, High: 30},
			domain.CategoryReputational: {Medium: 5, High: 25},
		},
	}
}

func act(id string, cat domain.Category, impact int, sev domain.Severity) domain.Activation {
	return domain.Activation{RuleID: id, Category: cat, Impact: impact, Severity: sev}
}

func TestProcessor(t *testing.T) {
	proc := NewProcessor(gatingPolicy())

	t.Run("NoActivations", func(t *testing.T) {
		outcomes, d := proc.Process(nil)

		if d.Tier != domain.TierLow {
			t.Errorf("expected LOW, got %s", d.Tier)
		}
		if d.Score != 100 {
			t.Errorf("expected baseline score 100, got %d", d.Score)
		}
		if d.DecidedBy != domain.DecidedByScoreBand {
			t.Errorf("expected score band decision, got %s", d.DecidedBy)
		}
		if len(outcomes) != len(domain.Categories()) {
			t.Errorf("expected every category present, got %d", len(outcomes))
		}
	})

	t.Run("CriticalLegalFinding", func(t *testing.T) {
		_, d := proc.Process([]domain.Activation{
			act("RL-001", domain.CategoryLegal, 30, domain.SeverityCritical),
			act("RR-007", domain.CategoryReputational, -5, domain.SeverityPositive),
		})

		if d.Tier != domain.TierCritical {
			t.Errorf("expected CRITICAL, got %s", d.Tier)
		}
		if d.Recommendation != "reject" {
			t.Errorf("expected reject, got %q", d.Recommendation)
		}
		if d.DecidedBy != "MR-001" {
			t.Errorf("expected MR-001, got %s", d.DecidedBy)
		}
	})

	t.Run("HighFinancialWithoutCritical", func(t *testing.T) {
		_, d := proc.Process([]domain.Activation{
			act("RF-004", domain.CategoryFinancial, 20, domain.SeverityHigh),
			act("RF-006", domain.CategoryFinancial, 25, domain.SeverityHigh),
		})

		if d.Tier != domain.TierHigh {
			t.Errorf("expected HIGH, got %s", d.Tier)
		}
		if d.DecidedBy != "MR-002" {
			t.Errorf("expected MR-002, got %s", d.DecidedBy)
		}
	})

	t.Run("CriticalInOtherCategoryDoesNotEscalate", func(t *testing.T) {
		// Financial is HIGH from high-severity rules; the critical finding
		// is operational and must not satisfy MR-001.
		_, d := proc.Process([]domain.Activation{
			act("RF-004", domain.CategoryFinancial, 20, domain.SeverityHigh),
			act("RF-006", domain.CategoryFinancial, 25, domain.SeverityHigh),
			act("RO-004", domain.CategoryOperational, 25, domain.SeverityCritical),
		})

		if d.Tier != domain.TierHigh {
			t.Errorf("expected HIGH, got %s", d.Tier)
		}
	})

	t.Run("OperationalMedium", func(t *testing.T) {
		_, d := proc.Process([]domain.Activation{
			act("RO-001", domain.CategoryOperational, 15, domain.SeverityModerate),
		})

		if d.Tier != domain.TierMedium {
			t.Errorf("expected MEDIUM, got %s", d.Tier)
		}
		if d.DecidedBy != "MR-003" {
			t.Errorf("expected MR-003, got %s", d.DecidedBy)
		}
		if d.Score != 85 {
			t.Errorf("expected score 85, got %d", d.Score)
		}
	})

	t.Run("ScoreBandFallback", func(t *testing.T) {
		_, d := proc.Process([]domain.Activation{
			act("RR-001", domain.CategoryReputational, 20, domain.SeverityHigh),
			act("RR-002", domain.CategoryReputational, 15, domain.SeverityModerate),
			act("RR-003", domain.CategoryReputational, 10, domain.SeverityLow),
		})

		if d.Score != 55 {
			t.Errorf("expected score 55, got %d", d.Score)
		}
		if d.Tier != domain.TierHigh {
			t.Errorf("expected HIGH from the score band, got %s", d.Tier)
		}
		if d.DecidedBy != domain.DecidedByScoreBand {
			t.Errorf("expected score band decision, got %s", d.DecidedBy)
		}
	})
}

func TestRuleIDMetaRule(t *testing.T) {
	policy := gatingPolicy()
	policy.metas = append([]domain.MetaRule{{
		ID:             "MR-X",
		RuleIDs:        []string{"RR-009"},
		Tier:           domain.TierHigh,
		Recommendation: "reject",
	}}, policy.metas...)
	proc := NewProcessor(policy)

	_, d := proc.Process([]domain.Activation{act("RR-009", domain.CategoryReputational, 35, domain.SeverityCritical)})
	if d.DecidedBy != "MR-X" {
		t.Errorf("expected MR-X, got %s", d.DecidedBy)
	}

	_, d = proc.Process([]domain.Activation{act("RR-003", domain.CategoryReputational, 10, domain.SeverityLow)})
	if d.DecidedBy == "MR-X" {
		t.Error("MR-X must not match without RR-009")
	}
}

func TestScoreClamping(t *testing.T) {
	tests := []struct {
		name    string
		impacts []int
		score   int
		total   int
	}{
		{"Empty", nil, 100, 0},
		{"RiskReducingOnly", []int{-30, -40}, 100, -70},
		{"Mixed", []int{25, -5, 10}, 70, 30},
		{"FloorAtZero", []int{60, 70}, 0, 130},
		{"ExactlyZero", []int{100}, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var acts []domain.Activation
			for _, i := range tt.impacts {
				acts = append(acts, act("R", domain.CategoryFinancial, i, domain.SeverityLow))
			}
			score, total := Score(acts)
			if score != tt.score {
				t.Errorf("expected score %d, got %d", tt.score, score)
			}
			if total != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, total)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	policy := gatingPolicy()
	acts := []domain.Activation{
		act("RF-001", domain.CategoryFinancial, 25, domain.SeverityCritical),
		act("RF-003", domain.CategoryFinancial, -5, domain.SeverityPositive),
		act("RO-001", domain.CategoryOperational, 15, domain.SeverityModerate),
		act("RR-003", domain.CategoryReputational, 5, domain.SeverityLow),
		act("RL-006", domain.CategoryLegal, -10, domain.SeverityPositive),
	}

	outcomes := Aggregate(acts, policy.Thresholds)

	want := map[domain.Category]domain.CategoryOutcome{
		domain.CategoryFinancial:    {Category: domain.CategoryFinancial, AggregateImpact: 20, Level: domain.LevelMedium, Activations: 2},
		domain.CategoryOperational:  {Category: domain.CategoryOperational, AggregateImpact: 15, Level: domain.LevelMedium, Activations: 1},
		domain.CategoryLegal:        {Category: domain.CategoryLegal, AggregateImpact: -10, Level: domain.LevelLow, Activations: 1},
		domain.CategoryReputational: {Category: domain.CategoryReputational, AggregateImpact: 5, Level: domain.LevelLow, Activations: 1},
		domain.CategoryComposite:    {Category: domain.CategoryComposite, Level: domain.LevelLow},
	}

	for cat, w := range want {
		if got := outcomes[cat]; got != w {
			t.Errorf("%s: expected %+v, got %+v", cat, w, got)
		}
	}

	t.Run("OrderIndependent", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 20; i++ {
			shuffled := make([]domain.Activation, len(acts))
			copy(shuffled, acts)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

			got := Aggregate(shuffled, policy.Thresholds)
			for cat, w := range want {
				if got[cat] != w {
					t.Fatalf("shuffle %d: %s changed to %+v", i, cat, got[cat])
				}
			}
		}
	})

	t.Run("DefaultThresholds", func(t *testing.T) {
		got := Aggregate([]domain.Activation{act("X", domain.CategoryComposite, 21, domain.SeverityHigh)}, nil)
		if got[domain.CategoryComposite].Level != domain.LevelHigh {
			t.Errorf("expected HIGH above 20, got %s", got[domain.CategoryComposite].Level)
		}
	})
}
