package explain

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ReportMeta identifies the subject of a report.
type ReportMeta struct {
	SupplierID   string
	SupplierName string
	EvaluationID string
}

// Markdown renders a result as a Markdown report. Writing the report to a
// file is left to the caller.
func Markdown(r domain.EvaluationResult, meta ReportMeta) string {
	var sb strings.Builder

	name := meta.SupplierName
	if name == "" {
		name = meta.SupplierID
	}
	if name == "" {
		name = "Supplier"
	}
	fmt.Fprintf(&sb, "# Supplier risk report: %s\n\n", name)

	if meta.SupplierID != "" {
		fmt.Fprintf(&sb, "- Supplier ID: `%s`\n", meta.SupplierID)
	}
	if meta.EvaluationID != "" {
		fmt.Fprintf(&sb, "- Evaluation ID: `%s`\n", meta.EvaluationID)
	}
	fmt.Fprintf(&sb, "- Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "- Catalog: %s, schema %s\n\n", r.CatalogVersion, r.SchemaVersion)

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "| Final tier | Score | Recommendation | Decided by |\n|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| **%s** | %d/100 | %s | %s |\n\n", r.FinalTier, r.Score, r.Recommendation, r.DecidedBy)

	sb.WriteString("## Categories\n\n")
	sb.WriteString(categoryTable(r.CategorySummary))
	sb.WriteString("\n\n")

	if len(r.CriticalFactors) > 0 {
		sb.WriteString("## Critical factors\n\n")
		for _, f := range r.CriticalFactors {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Reasoning\n\n")
	if len(r.Trace) == 0 {
		sb.WriteString("No rule fired; the baseline score applies.\n\n")
	}
	for i, e := range r.Trace {
		fmt.Fprintf(&sb, "%d. **%s %s** (%s, %s, %+d): %s\n",
			i+1, e.RuleID, e.RuleName, e.Category, e.Severity, e.Impact, e.Justification)
	}
	if len(r.Trace) > 0 {
		sb.WriteString("\n")
	}

	if len(r.Alerts) > 0 {
		sb.WriteString("## Alerts\n\n")
		for _, a := range r.Alerts {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", strings.ToUpper(string(a.Severity)), a.RuleID, a.Message)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Mitigation plan\n\n")
	for _, s := range r.MitigationPlan {
		if s.Severity != "" {
			fmt.Fprintf(&sb, "### %d. %s (%s)\n\n", s.Priority, s.Factor, s.Severity)
		} else {
			fmt.Fprintf(&sb, "### %d. %s\n\n", s.Priority, s.Factor)
		}
		for _, a := range s.Actions {
			fmt.Fprintf(&sb, "- %s\n", a)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func categoryTable(rows []domain.CategorySummary) string {
	w := table.NewWriter()
	w.AppendHeader(table.Row{"Category", "Activations", "Risk", "Relief", "Aggregate", "Level"})
	for _, r := range rows {
		w.AppendRow(table.Row{r.Label, r.Activations, r.RiskImpact, r.Relief, r.AggregateImpact, r.Level})
	}
	return w.RenderMarkdown()
}
