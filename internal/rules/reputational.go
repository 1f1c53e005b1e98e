package rules

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var reputationalRules = []builtin{
	{
		id: "RR-001", name: "Poor market reputation", category: domain.CategoryReputational,
		severity: domain.SeverityHigh, impact: 20, factor: "Poor market reputation",
		when: func(f domain.FactSet) bool { return f.Number(domain.IndMarketRating) < 3.0 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("market rating of %.1f/5 is below the 3.0 minimum", f.Number(domain.IndMarketRating))
		},
	},
	{
		id: "RR-002", name: "Frequent complaints", category: domain.CategoryReputational,
		severity: domain.SeverityModerate, impact: 15,
		when: func(f domain.FactSet) bool { return f.Count(domain.IndCustomerComplaints) > 10 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%d customer complaints in the last year exceed the limit of 10", f.Count(domain.IndCustomerComplaints))
		},
	},
	{
		id: "RR-003", name: "Few references", category: domain.CategoryReputational,
		severity: domain.SeverityLow, impact: 10,
		when: func(f domain.FactSet) bool { return f.Count(domain.IndPositiveReferences) < 2 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%d verified references, at least 2 expected", f.Count(domain.IndPositiveReferences))
		},
	},
	{
		id: "RR-004", name: "Security incident", category: domain.CategoryReputational,
		severity: domain.SeverityModerate, impact: 10,
		when: func(f domain.FactSet) bool { return f.Count(domain.IndSecurityIncidents) == 1 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%d security incident reported in the last 24 months", f.Count(domain.IndSecurityIncidents))
		},
	},
	{
		id: "RR-005", name: "Repeated security incidents", category: domain.CategoryReputational,
		severity: domain.SeverityCritical, impact: 25, factor: "Repeated security incidents",
		when: func(f domain.FactSet) bool { return f.Count(domain.IndSecurityIncidents) >= 2 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%d security incidents in the last 24 months", f.Count(domain.IndSecurityIncidents))
		},
	},
	{
		id: "RR-006", name: "Unverified ethical practices", category: domain.CategoryReputational,
		severity: domain.SeverityModerate, impact: 10,
		when: func(f domain.FactSet) bool { return !f.Flag(domain.IndEthicalPracticesVerified) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("ethical practices audit reported as %t", f.Flag(domain.IndEthicalPracticesVerified))
		},
	},
	{
		id: "RR-007", name: "Excellent market rating", category: domain.CategoryReputational,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool { return f.Number(domain.IndMarketRating) >= 4.5 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("market rating of %.1f/5 meets the 4.5 excellence level", f.Number(domain.IndMarketRating))
		},
	},
	{
		id: "RR-008", name: "Outstanding reputation", category: domain.CategoryReputational,
		severity: domain.SeverityPositive, impact: -10,
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndMarketRating) >= 4.5 &&
				f.Count(domain.IndCustomerComplaints) <= 2 &&
				f.Count(domain.IndPositiveReferences) >= 5 &&
				f.Count(domain.IndSecurityIncidents) == 0
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("rating %.1f/5 with %d complaints, %d references and no security incidents",
				f.Number(domain.IndMarketRating), f.Count(domain.IndCustomerComplaints), f.Count(domain.IndPositiveReferences))
		},
	},
	{
		id: "RR-009", name: "Reputational crisis", category: domain.CategoryReputational,
		severity: domain.SeverityCritical, impact: 35, factor: "Reputational crisis",
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndMarketRating) < 2.5 &&
				f.Count(domain.IndSecurityIncidents) >= 2 &&
				!f.Flag(domain.IndEthicalPracticesVerified)
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("rating %.1f/5, %d security incidents and unverified ethics together signal a reputational crisis",
				f.Number(domain.IndMarketRating), f.Count(domain.IndSecurityIncidents))
		},
	},
	{
		id: "RR-010", name: "Environmental responsibility", category: domain.CategoryReputational,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool { return attested(f, domain.IndEnvironmentalResponsibility, true) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("environmental responsibility programme reported as %t", f.Flag(domain.IndEnvironmentalResponsibility))
		},
	},
	{
		id: "RR-011", name: "No environmental practices", category: domain.CategoryReputational,
		severity: domain.SeverityModerate, impact: 8,
		when: func(f domain.FactSet) bool { return attested(f, domain.IndEnvironmentalResponsibility, false) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("environmental responsibility programme reported as %t", f.Flag(domain.IndEnvironmentalResponsibility))
		},
	},
	{
		id: "RR-012", name: "Positive ESG profile", category: domain.CategoryReputational,
		severity: domain.SeverityPositive, impact: -10,
		when: func(f domain.FactSet) bool {
			return f.Flag(domain.IndEthicalPracticesVerified) && attested(f, domain.IndEnvironmentalResponsibility, true)
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("ethical practices verified (%t) and environmental responsibility documented (%t)",
				f.Flag(domain.IndEthicalPracticesVerified), f.Flag(domain.IndEnvironmentalResponsibility))
		},
	},
	{
		id: "RR-013", name: "Highly reliable supplier", category: domain.CategoryReputational,
		severity: domain.SeverityPositive, impact: -18,
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndMarketRating) >= 4.5 &&
				f.Count(domain.IndSecurityIncidents) == 0 &&
				f.Flag(domain.IndEthicalPracticesVerified) &&
				attested(f, domain.IndEnvironmentalResponsibility, true)
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("rating %.1f/5 with %d security incidents, verified ethics and documented environmental responsibility",
				f.Number(domain.IndMarketRating), f.Count(domain.IndSecurityIncidents))
		},
	},
}
