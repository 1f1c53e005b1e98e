package rules

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var operationalRules = []builtin{
	{
		id: "RO-001", name: "No quality certification", category: domain.CategoryOperational,
		severity: domain.SeverityModerate, impact: 15,
		when: func(f domain.FactSet) bool { return !f.Flag(domain.IndQualityCertified) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("quality certification reported as %t; no audited quality management system", f.Flag(domain.IndQualityCertified))
		},
	},
	{
		id: "RO-002", name: "New supplier", category: domain.CategoryOperational,
		severity: domain.SeverityModerate, impact: 15,
		when: func(f domain.FactSet) bool { return f.Number(domain.IndYearsInMarket) < 2 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%.1f years in market is under the 2 year track record threshold", f.Number(domain.IndYearsInMarket))
		},
	},
	{
		id: "RO-003", name: "Limited capacity", category: domain.CategoryOperational,
		severity: domain.SeverityHigh, impact: 20, factor: "Limited capacity",
		when: func(f domain.FactSet) bool { return f.Number(domain.IndProductionCapacity) < 50 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("available production capacity of %.0f%% is below the 50%% minimum", f.Number(domain.IndProductionCapacity))
		},
	},
	{
		id: "RO-004", name: "Quality problems", category: domain.CategoryOperational,
		severity: domain.SeverityCritical, impact: 25, factor: "Quality problems",
		when: func(f domain.FactSet) bool { return f.Number(domain.IndDefectRate) > 5 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("defect rate of %.1f%% exceeds the 5%% tolerance", f.Number(domain.IndDefectRate))
		},
	},
	{
		id: "RO-005", name: "Missed delivery deadlines", category: domain.CategoryOperational,
		severity: domain.SeverityCritical, impact: 25, factor: "Missed delivery deadlines",
		when: func(f domain.FactSet) bool { return f.Number(domain.IndOnTimeDeliveryRate) < 70 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("on-time delivery rate of %.0f%% is below the 70%% minimum", f.Number(domain.IndOnTimeDeliveryRate))
		},
	},
	{
		id: "RO-006", name: "Established track record", category: domain.CategoryOperational,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool { return f.Number(domain.IndYearsInMarket) >= 10 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%.0f years in market shows an established track record", f.Number(domain.IndYearsInMarket))
		},
	},
	{
		id: "RO-007", name: "Reliable delivery", category: domain.CategoryOperational,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool { return f.Number(domain.IndOnTimeDeliveryRate) >= 95 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("on-time delivery rate of %.0f%% meets the 95%% excellence level", f.Number(domain.IndOnTimeDeliveryRate))
		},
	},
	{
		id: "RO-008", name: "Operational excellence", category: domain.CategoryOperational,
		severity: domain.SeverityPositive, impact: -10,
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndYearsInMarket) >= 10 &&
				f.Number(domain.IndOnTimeDeliveryRate) >= 95 &&
				f.Flag(domain.IndQualityCertified)
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("certified supplier with %.0f years in market and %.0f%% on-time delivery",
				f.Number(domain.IndYearsInMarket), f.Number(domain.IndOnTimeDeliveryRate))
		},
	},
	{
		id: "RO-009", name: "Operational collapse risk", category: domain.CategoryOperational,
		severity: domain.SeverityCritical, impact: 25, factor: "Operational collapse risk",
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndYearsInMarket) < 2 &&
				f.Number(domain.IndOnTimeDeliveryRate) < 70 &&
				f.Number(domain.IndProductionCapacity) < 50
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%.1f years in market, %.0f%% on-time delivery and %.0f%% capacity together signal an unstable operation",
				f.Number(domain.IndYearsInMarket), f.Number(domain.IndOnTimeDeliveryRate), f.Number(domain.IndProductionCapacity))
		},
	},
}
