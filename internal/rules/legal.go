package rules

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var legalRules = []builtin{
	{
		id: "RL-001", name: "Legal non-compliance", category: domain.CategoryLegal,
		severity: domain.SeverityCritical, impact: 30, factor: "Legal issues",
		when: func(f domain.FactSet) bool { return !f.Flag(domain.IndLegalCompliance) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("legal compliance reported as %t; outstanding legal or regulatory obligations", f.Flag(domain.IndLegalCompliance))
		},
	},
	{
		id: "RL-002", name: "Missing environmental certification", category: domain.CategoryLegal,
		severity: domain.SeverityModerate, impact: 15,
		when: func(f domain.FactSet) bool {
			return f.Text(domain.IndIndustry) == domain.IndustryManufacturing && !f.Flag(domain.IndEnvironmentalCertified)
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%s supplier without environmental certification", f.Text(domain.IndIndustry))
		},
	},
	{
		id: "RL-003", name: "No insurance", category: domain.CategoryLegal,
		severity: domain.SeverityHigh, impact: 20, factor: "No insurance",
		when: func(f domain.FactSet) bool { return !f.Flag(domain.IndInsuranceCurrent) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("liability insurance in force reported as %t", f.Flag(domain.IndInsuranceCurrent))
		},
	},
	{
		id: "RL-004", name: "Pending litigation", category: domain.CategoryLegal,
		severity: domain.SeverityModerate, impact: 8,
		when: func(f domain.FactSet) bool {
			n := f.Count(domain.IndActiveLawsuits)
			return n >= 1 && n <= 2
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%d active lawsuit(s) require follow-up", f.Count(domain.IndActiveLawsuits))
		},
	},
	{
		id: "RL-005", name: "Litigation exposure", category: domain.CategoryLegal,
		severity: domain.SeverityCritical, impact: 25, factor: "Litigation exposure",
		when: func(f domain.FactSet) bool { return f.Count(domain.IndActiveLawsuits) >= 3 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%d active lawsuits meet the 3 case exposure threshold", f.Count(domain.IndActiveLawsuits))
		},
	},
	{
		id: "RL-006", name: "Clean legal standing", category: domain.CategoryLegal,
		severity: domain.SeverityPositive, impact: -10,
		when: func(f domain.FactSet) bool {
			return f.Flag(domain.IndLegalCompliance) && f.Flag(domain.IndInsuranceCurrent) && f.Count(domain.IndActiveLawsuits) == 0
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("compliant, insured and %d active lawsuits", f.Count(domain.IndActiveLawsuits))
		},
	},
	{
		id: "RL-007", name: "Current licences", category: domain.CategoryLegal,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool { return attested(f, domain.IndLicensesCurrent, true) && f.Flag(domain.IndLegalCompliance) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("operating licences current reported as %t", f.Flag(domain.IndLicensesCurrent))
		},
	},
	{
		id: "RL-008", name: "Expired licences", category: domain.CategoryLegal,
		severity: domain.SeverityCritical, impact: 35, factor: "Expired licences",
		when: func(f domain.FactSet) bool { return attested(f, domain.IndLicensesCurrent, false) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("operating licences current reported as %t; the supplier cannot legally operate", f.Flag(domain.IndLicensesCurrent))
		},
	},
	{
		id: "RL-009", name: "Tax certificate current", category: domain.CategoryLegal,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool {
			return attested(f, domain.IndTaxCertificateCurrent, true) && f.Flag(domain.IndLegalCompliance)
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("tax good-standing certificate current reported as %t", f.Flag(domain.IndTaxCertificateCurrent))
		},
	},
	{
		id: "RL-010", name: "Tax arrears", category: domain.CategoryLegal,
		severity: domain.SeverityHigh, impact: 20, factor: "Tax arrears",
		when: func(f domain.FactSet) bool { return attested(f, domain.IndTaxCertificateCurrent, false) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("tax good-standing certificate current reported as %t; outstanding tax obligations", f.Flag(domain.IndTaxCertificateCurrent))
		},
	},
	{
		id: "RL-011", name: "Labour compliance verified", category: domain.CategoryLegal,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool { return attested(f, domain.IndLabourCompliant, true) && f.Flag(domain.IndLegalCompliance) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("labour and social security compliance reported as %t", f.Flag(domain.IndLabourCompliant))
		},
	},
	{
		id: "RL-012", name: "Labour non-compliance", category: domain.CategoryLegal,
		severity: domain.SeverityHigh, impact: 28, factor: "Labour non-compliance",
		when: func(f domain.FactSet) bool { return attested(f, domain.IndLabourCompliant, false) },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("labour and social security compliance reported as %t; exposure to labour claims", f.Flag(domain.IndLabourCompliant))
		},
	},
	{
		id: "RL-013", name: "Full legal compliance", category: domain.CategoryLegal,
		severity: domain.SeverityPositive, impact: -15,
		when: func(f domain.FactSet) bool {
			return f.Flag(domain.IndLegalCompliance) &&
				attested(f, domain.IndLicensesCurrent, true) &&
				attested(f, domain.IndTaxCertificateCurrent, true) &&
				attested(f, domain.IndLabourCompliant, true) &&
				f.Count(domain.IndActiveLawsuits) == 0
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("licences, tax certificate and labour obligations all current with %d active lawsuits",
				f.Count(domain.IndActiveLawsuits))
		},
	},
	{
		id: "RL-014", name: "Legal crisis", category: domain.CategoryLegal,
		severity: domain.SeverityCritical, impact: 40, factor: "Legal crisis",
		when: func(f domain.FactSet) bool {
			return attested(f, domain.IndLicensesCurrent, false) &&
				attested(f, domain.IndTaxCertificateCurrent, false) &&
				f.Count(domain.IndActiveLawsuits) >= 3
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("expired licences and tax arrears together with %d active lawsuits", f.Count(domain.IndActiveLawsuits))
		},
	},
	{
		id: "RL-015", name: "Isolated legal gaps", category: domain.CategoryLegal,
		severity: domain.SeverityModerate, impact: 12,
		when: func(f domain.FactSet) bool {
			return len(legalGaps(f)) > 0 && f.Count(domain.IndActiveLawsuits) <= 1
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("%s not current with %d active lawsuit(s)",
				strings.Join(legalGaps(f), ", "), f.Count(domain.IndActiveLawsuits))
		},
	},
}

// attested reports whether the caller explicitly supplied flag with value want.
// Defaulted flags mean "not assessed" and never match.
func attested(f domain.FactSet, flag string, want bool) bool {
	v, ok := f.Attested(flag)
	return ok && v == want
}

// legalGaps lists the legal attestations explicitly reported as not current.
func legalGaps(f domain.FactSet) []string {
	var gaps []string
	for _, flag := range []string{domain.IndLicensesCurrent, domain.IndTaxCertificateCurrent, domain.IndLabourCompliant} {
		if attested(f, flag, false) {
			gaps = append(gaps, flag)
		}
	}
	return gaps
}
