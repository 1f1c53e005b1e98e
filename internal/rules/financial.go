package rules

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Liquidity, leverage and profitability cut-points scale with the
// supplier's industry; see financialCutPoints.
var financialRules = []builtin{
	{
		id: "RF-001", name: "Critical liquidity", category: domain.CategoryFinancial,
		severity: domain.SeverityCritical, impact: 25, factor: "Critical liquidity",
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndCurrentRatio) < financialCutPoints(f).minLiquidity
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("current ratio of %.2f is below the %.2f minimum; short-term liabilities exceed liquid assets",
				f.Number(domain.IndCurrentRatio), financialCutPoints(f).minLiquidity)
		},
	},
	{
		id: "RF-002", name: "Tight liquidity", category: domain.CategoryFinancial,
		severity: domain.SeverityLow, impact: 10,
		when: func(f domain.FactSet) bool {
			cr, cp := f.Number(domain.IndCurrentRatio), financialCutPoints(f)
			return cr >= cp.minLiquidity && cr < cp.comfortLiquidity
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("current ratio of %.2f covers liabilities but sits under the %.2f comfort level",
				f.Number(domain.IndCurrentRatio), financialCutPoints(f).comfortLiquidity)
		},
	},
	{
		id: "RF-003", name: "Sound liquidity", category: domain.CategoryFinancial,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndCurrentRatio) >= financialCutPoints(f).comfortLiquidity
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("current ratio of %.2f meets the %.2f comfort level",
				f.Number(domain.IndCurrentRatio), financialCutPoints(f).comfortLiquidity)
		},
	},
	{
		id: "RF-004", name: "Excessive debt", category: domain.CategoryFinancial,
		severity: domain.SeverityHigh, impact: 20, factor: "Excessive debt",
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndDebtRatio) > financialCutPoints(f).debtCeiling
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("debt ratio of %.0f%% exceeds the %.0f%% ceiling",
				f.Number(domain.IndDebtRatio)*100, financialCutPoints(f).debtCeiling*100)
		},
	},
	{
		id: "RF-005", name: "Operating losses", category: domain.CategoryFinancial,
		severity: domain.SeverityCritical, impact: 30, factor: "Operating losses",
		when: func(f domain.FactSet) bool { return f.Number(domain.IndProfitMargin) < 0 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("profit margin of %.1f%% shows the supplier is operating at a loss",
				f.Number(domain.IndProfitMargin)*100)
		},
	},
	{
		id: "RF-006", name: "Recurring late payments", category: domain.CategoryFinancial,
		severity: domain.SeverityHigh, impact: 25, factor: "Recurring late payments",
		when: func(f domain.FactSet) bool { return f.Number(domain.IndOnTimePaymentRate) < 60 },
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("only %.0f%% of obligations are paid on time, below the 60%% minimum",
				f.Number(domain.IndOnTimePaymentRate))
		},
	},
	{
		id: "RF-007", name: "Low leverage", category: domain.CategoryFinancial,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndDebtRatio) < financialCutPoints(f).lowDebt
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("debt ratio of %.0f%% is under the %.0f%% conservative level",
				f.Number(domain.IndDebtRatio)*100, financialCutPoints(f).lowDebt*100)
		},
	},
	{
		id: "RF-008", name: "Strong profitability", category: domain.CategoryFinancial,
		severity: domain.SeverityPositive, impact: -5,
		when: func(f domain.FactSet) bool {
			return f.Number(domain.IndProfitMargin) >= financialCutPoints(f).marginBenchmark
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("profit margin of %.1f%% meets the %.1f%% benchmark",
				f.Number(domain.IndProfitMargin)*100, financialCutPoints(f).marginBenchmark*100)
		},
	},
	{
		id: "RF-009", name: "Financial distress", category: domain.CategoryFinancial,
		severity: domain.SeverityCritical, impact: 30, factor: "Financial distress",
		when: func(f domain.FactSet) bool {
			cp := financialCutPoints(f)
			return f.Number(domain.IndCurrentRatio) < cp.minLiquidity && f.Number(domain.IndDebtRatio) > cp.debtCeiling
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("current ratio of %.2f combined with debt ratio of %.0f%% indicates financial distress",
				f.Number(domain.IndCurrentRatio), f.Number(domain.IndDebtRatio)*100)
		},
	},
	{
		id: "RF-010", name: "Robust financial health", category: domain.CategoryFinancial,
		severity: domain.SeverityPositive, impact: -10,
		when: func(f domain.FactSet) bool {
			cp := financialCutPoints(f)
			return f.Number(domain.IndCurrentRatio) >= cp.strongLiquidity &&
				f.Number(domain.IndDebtRatio) < cp.lowDebt &&
				f.Number(domain.IndProfitMargin) >= cp.marginBenchmark
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("current ratio %.2f, debt ratio %.0f%% and margin %.1f%% all exceed the excellence benchmarks",
				f.Number(domain.IndCurrentRatio), f.Number(domain.IndDebtRatio)*100, f.Number(domain.IndProfitMargin)*100)
		},
	},
	{
		id: "RF-011", name: "Implausible financial figures", category: domain.CategoryFinancial,
		severity: domain.SeverityModerate, impact: 15, factor: "Implausible financial figures",
		when: func(f domain.FactSet) bool {
			pay := f.Number(domain.IndOnTimePaymentRate)
			return f.Number(domain.IndCurrentRatio) < 0 || f.Number(domain.IndDebtRatio) < 0 || pay < 0 || pay > 100
		},
		why: func(f domain.FactSet) string {
			return fmt.Sprintf("reported figures are outside their valid range (current ratio %.2f, debt ratio %.2f, on-time payments %.0f%%)",
				f.Number(domain.IndCurrentRatio), f.Number(domain.IndDebtRatio), f.Number(domain.IndOnTimePaymentRate))
		},
	},
}
