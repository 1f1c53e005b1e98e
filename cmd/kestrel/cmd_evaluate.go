package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

var evaluateFlags struct {
	rulesFile   string
	format      string
	concurrency int
	logLevel    string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate FILE...",
	Short: "Evaluate suppliers from YAML or JSON files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateFlags.rulesFile, "rules", "", "YAML file of CEL rule definitions to add to the catalog")
	f.StringVarP(&evaluateFlags.format, "format", "f", "table", "Output format: table, json or markdown")
	f.IntVar(&evaluateFlags.concurrency, "concurrency", 8, "Maximum concurrent evaluations")
	f.StringVar(&evaluateFlags.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	switch evaluateFlags.format {
	case "table", "json", "markdown":
	default:
		return fmt.Errorf("unknown format %q (want table, json or markdown)", evaluateFlags.format)
	}

	logger := config.NewLogger(domain.LoggingConfig{Level: evaluateFlags.logLevel, Format: "text"}, cmd.ErrOrStderr())

	reqs, err := loadSuppliers(args)
	if err != nil {
		return err
	}

	svc, err := engine.NewService(cmd.Context(), engine.ServiceConfig{
		Logger:           logger,
		RulesFile:        evaluateFlags.rulesFile,
		BatchConcurrency: evaluateFlags.concurrency,
	})
	if err != nil {
		return err
	}

	items, err := svc.EvaluateBatch(cmd.Context(), reqs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch evaluateFlags.format {
	case "json":
		err = writeEvaluationsJSON(out, reqs, items)
	case "markdown":
		err = writeEvaluationsMarkdown(out, svc, reqs, items)
	default:
		err = writeEvaluationsTable(out, reqs, items)
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d suppliers could not be evaluated", failed, len(items))
	}
	return nil
}

func itemError(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return "invalid: " + strings.Join(verr.FieldNames(), ", ")
	}
	return err.Error()
}

func writeEvaluationsTable(w io.Writer, reqs []domain.SupplierRequest, items []engine.BatchItem) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Supplier", "Tier", "Score", "Decided by", "Impact", "Critical factors", "Recommendation"})

	for i, item := range items {
		if item.Err != nil {
			t.AppendRow(table.Row{reqs[i].SupplierID, "-", "-", "-", "-", itemError(item.Err), "-"})
			continue
		}
		r := item.Record.Result
		t.AppendRow(table.Row{
			reqs[i].SupplierID,
			r.FinalTier,
			r.Score,
			r.DecidedBy,
			r.TotalImpact,
			strings.Join(r.CriticalFactors, ", "),
			r.Recommendation,
		})
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

type evaluationOutput struct {
	SupplierID string                   `json:"supplierId"`
	Result     *domain.EvaluationResult `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Fields     []domain.FieldError      `json:"fields,omitempty"`
}

func writeEvaluationsJSON(w io.Writer, reqs []domain.SupplierRequest, items []engine.BatchItem) error {
	out := make([]evaluationOutput, len(items))
	for i, item := range items {
		out[i].SupplierID = reqs[i].SupplierID
		if item.Err != nil {
			out[i].Error = item.Err.Error()
			var verr *domain.ValidationError
			if errors.As(item.Err, &verr) {
				out[i].Fields = verr.Fields
			}
			continue
		}
		out[i].Result = &item.Record.Result
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeEvaluationsMarkdown(w io.Writer, svc *engine.Service, reqs []domain.SupplierRequest, items []engine.BatchItem) error {
	for i, item := range items {
		if i > 0 {
			fmt.Fprintln(w, "\n---")
			fmt.Fprintln(w)
		}
		if item.Err != nil {
			fmt.Fprintf(w, "# %s\n\nEvaluation failed: %s\n", reqs[i].SupplierID, itemError(item.Err))
			continue
		}
		if _, err := io.WriteString(w, svc.Report(item.Record)); err != nil {
			return err
		}
	}
	return nil
}
