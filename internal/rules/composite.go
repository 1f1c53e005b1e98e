package rules

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Composite rules read indicators across categories. They are ordinary
// rules: they inspect the fact set only, never other activations.
var compositeRules = []builtin{
	{
		id: "CX-001", name: "Insolvent and non-compliant", category: domain.CategoryComposite,
		severity: domain.SeverityCritical, impact: 20, factor: "Insolvent and non-compliant",
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndProfitMargin) < 0 && !f.Flag(domain.IndLegalCompliance)
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("loss-making (margin %.1f%%) while legally non-compliant", f.Number(domain.IndProfitMargin)*100)
		},
	},
	{
		id: "CX-002", name: "Unproven and illiquid", category: domain.CategoryComposite,
		severity: domain.SeverityHigh, impact: 15, factor: "Unproven and illiquid",
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndYearsInMarket) < 2 && f.Number(domain.IndCurrentRatio) < 1.0
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%.1f years in market with a current ratio of %.2f",
				f.Number(domain.IndYearsInMarket), f.Number(domain.IndCurrentRatio))
		},
	},
}
