package explain

import (
	"fmt"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Plan step labels that do not correspond to a risk factor.
const (
	StepMaintenance = "Relationship maintenance"
	StepMonitoring  = "General monitoring"
	StepFollowUp    = "Follow-up"
)

// DefaultMitigations returns the known mitigation actions per factor label.
func DefaultMitigations() map[string][]string {
	return map[string][]string{
		"Critical liquidity": {
			"Negotiate extended payment terms with the supplier",
			"Require a bank guarantee or standby letter of credit",
			"Request monthly cash flow statements",
		},
		"Excessive debt": {
			"Request a debt restructuring plan",
			"Limit order volume until leverage improves",
			"Review financial covenants quarterly",
		},
		"Operating losses": {
			"Request a documented financial turnaround plan",
			"Require guarantees for any advance payments",
			"Qualify an alternative supplier",
		},
		"Recurring late payments": {
			"Review the supplier's payment history with its creditors",
			"Avoid advance payments and prefer payment on delivery",
		},
		"Financial distress": {
			"Escalate to the credit committee before any new commitment",
			"Prepare a contingency sourcing plan",
		},
		"Implausible financial figures": {
			"Request audited financial statements",
			"Re-submit the evaluation with verified figures",
		},
		"Limited capacity": {
			"Split volume across additional suppliers",
			"Agree a capacity reservation in the contract",
			"Review the supplier's expansion plans",
		},
		"Quality problems": {
			"Introduce incoming inspection for every delivery",
			"Require a corrective and preventive action plan",
			"Schedule an on-site quality audit within 30 days",
		},
		"Missed delivery deadlines": {
			"Add late delivery penalties to the contract",
			"Hold safety stock for critical items",
			"Track deliveries weekly",
		},
		"Operational collapse risk": {
			"Do not award critical volume until operations stabilize",
			"Qualify a second source immediately",
		},
		"Legal issues": {
			"Run a full legal due diligence",
			"Suspend new contracts until compliance is certified",
			"Add compliance warranties and termination clauses",
		},
		"No insurance": {
			"Require a liability insurance certificate before signing",
			"Add indemnity clauses to the contract",
		},
		"Litigation exposure": {
			"Obtain counsel's assessment of the open lawsuits",
			"Cap contract exposure until cases are resolved",
		},
		"Expired licences": {
			"Suspend orders until current operating licences are provided",
			"Verify licence status with the issuing authority",
		},
		"Tax arrears": {
			"Request a current tax good-standing certificate",
			"Withhold payments where the law makes buyers jointly liable",
		},
		"Labour non-compliance": {
			"Request proof of social security and payroll contributions",
			"Add labour compliance warranties to the contract",
		},
		"Legal crisis": {
			"Do not contract until licences and tax standing are restored",
			"Escalate to legal counsel",
		},
		"Poor market reputation": {
			"Collect references from current customers",
			"Review public complaints and press coverage",
		},
		"Repeated security incidents": {
			"Require an independent security assessment",
			"Restrict data shared with the supplier",
			"Add incident notification obligations to the contract",
		},
		"Reputational crisis": {
			"Escalate to compliance and communications before engagement",
			"Commission an ethical practices audit",
		},
		"Insolvent and non-compliant": {
			"Do not contract until both legal and financial issues are resolved",
		},
		"Unproven and illiquid": {
			"Start with a limited pilot order",
			"Require payment on delivery only",
		},
	}
}

// plan builds the prioritized mitigation plan. LOW tiers get a maintenance
// plan; tiers without critical factors get generic monitoring; otherwise
// one step per factor, critical before high, then a follow-up step.
func (b *Builder) plan(tier domain.Tier, factors []factor) []domain.MitigationStep {
	if tier == domain.TierLow {
		return []domain.MitigationStep{{
			Priority: 1,
			Factor:   StepMaintenance,
			Actions: []string{
				"Keep the standard annual review",
				"Monitor delivery and quality KPIs",
				"Consider preferred supplier status",
			},
		}}
	}

	if len(factors) == 0 {
		return []domain.MitigationStep{{
			Priority: 1,
			Factor:   StepMonitoring,
			Actions: []string{
				"Review supplier KPIs quarterly",
				"Request updated financial statements every six months",
				"Re-evaluate when indicators change materially",
			},
		}}
	}

	ordered := make([]factor, len(factors))
	copy(ordered, factors)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].severity.Rank() != ordered[j].severity.Rank() {
			return ordered[i].severity.Rank() > ordered[j].severity.Rank()
		}
		return ordered[i].first < ordered[j].first
	})

	steps := make([]domain.MitigationStep, 0, len(ordered)+1)
	for i, f := range ordered {
		actions, ok := b.mitigations[f.label]
		if !ok {
			actions = []string{
				fmt.Sprintf("Investigate the root cause of %q with the supplier", f.label),
				"Agree corrective actions and a review date",
			}
		}
		steps = append(steps, domain.MitigationStep{
			Priority: i + 1,
			Factor:   f.label,
			Severity: f.severity,
			Actions:  append([]string(nil), actions...),
		})
	}

	steps = append(steps, domain.MitigationStep{
		Priority: len(steps) + 1,
		Factor:   StepFollowUp,
		Actions: []string{
			"Monitor progress monthly for 6 months",
			"Re-evaluate the supplier once remediation is complete",
		},
	})
	return steps
}
