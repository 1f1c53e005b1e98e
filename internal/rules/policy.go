package rules

import "github.com/opensource-finance/kestrel/internal/domain"

// Recommendations issued by the built-in policy.
const (
	RecommendApprove           = "approve"
	RecommendConditional       = "approve with conditions"
	RecommendConditionalReview = "approve with conditions: mitigation plan + periodic review"
	RecommendReject            = "reject"
	RecommendRejectRemediate   = "reject, re-evaluate after remediation"
)

// DefaultThresholds returns the built-in category cut-points. Composite
// rules fall back to domain.DefaultThresholds.
func DefaultThresholds() map[domain.Category]domain.Thresholds {
	return map[domain.Category]domain.Thresholds{
		domain.CategoryFinancial:    {Medium: 0, High: 20},
		domain.CategoryOperational:  {Medium: 0, High: 30},
		domain.CategoryLegal:        {Medium: 0, High: 20},
		domain.CategoryReputational: {Medium: 5, High: 25},
	}
}

// DefaultMetaRules returns the built-in final decision policy in priority order.
// Legal and financial failures gate the decision regardless of the score.
func DefaultMetaRules() []domain.MetaRule {
	gating := []domain.Category{domain.CategoryFinancial, domain.CategoryLegal}
	return []domain.MetaRule{
		{
			ID:              "MR-001",
			Description:     "financial or legal risk is HIGH and driven by a critical finding",
			Categories:      gating,
			MinLevel:        domain.LevelHigh,
			RequireSeverity: domain.SeverityCritical,
			Tier:            domain.TierCritical,
			Recommendation:  RecommendReject,
		},
		{
			ID:             "MR-002",
			Description:    "financial or legal risk is HIGH",
			Categories:     gating,
			MinLevel:       domain.LevelHigh,
			Tier:           domain.TierHigh,
			Recommendation: RecommendRejectRemediate,
		},
		{
			ID:             "MR-003",
			Description:    "operational risk is MEDIUM or HIGH",
			Categories:     []domain.Category{domain.CategoryOperational},
			MinLevel:       domain.LevelMedium,
			Tier:           domain.TierMedium,
			Recommendation: RecommendConditionalReview,
		},
	}
}

// DefaultScoreBands returns the fallback score policy.
func DefaultScoreBands() []domain.ScoreBand {
	return []domain.ScoreBand{
		{Min: 80, Tier: domain.TierLow, Recommendation: RecommendApprove},
		{Min: 60, Tier: domain.TierMedium, Recommendation: RecommendConditional},
		{Min: 0, Tier: domain.TierHigh, Recommendation: RecommendReject},
	}
}
