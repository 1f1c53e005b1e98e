package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
)

var benchFlags struct {
	url       string
	rulesFile string
	workers   int
	limit     int
	verbose   bool
}

var benchCmd = &cobra.Command{
	Use:   "bench FILE.csv",
	Short: "Compare evaluated tiers with expected tiers from a labelled CSV",
	Long: "bench reads suppliers from a CSV file with one column per indicator plus\n" +
		"supplier_id, name and expected_tier columns, evaluates each row and reports\n" +
		"the tier confusion matrix, agreement and throughput. With --url the rows are\n" +
		"sent to a running server; otherwise they are evaluated in-process.",
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	f := benchCmd.Flags()
	f.StringVar(&benchFlags.url, "url", "", "Base URL of a running kestrel server (empty evaluates in-process)")
	f.StringVar(&benchFlags.rulesFile, "rules", "", "YAML file of CEL rule definitions for in-process evaluation")
	f.IntVar(&benchFlags.workers, "workers", 10, "Number of concurrent workers")
	f.IntVar(&benchFlags.limit, "limit", 0, "Maximum rows to process (0 = all)")
	f.BoolVar(&benchFlags.verbose, "verbose", false, "Print each row result")
}

// labelledSupplier is one CSV row.
type labelledSupplier struct {
	Request  domain.SupplierRequest
	Expected domain.Tier
}

// evaluateFunc evaluates one supplier and returns its final tier and score.
type evaluateFunc func(ctx context.Context, req domain.SupplierRequest) (domain.Tier, int, error)

// benchResult tracks agreement between expected and evaluated tiers.
type benchResult struct {
	mu        sync.Mutex
	matrix    map[domain.Tier]map[domain.Tier]int
	processed atomic.Int64
	errors    atomic.Int64
	latencyMs atomic.Int64
}

func newBenchResult() *benchResult {
	return &benchResult{matrix: make(map[domain.Tier]map[domain.Tier]int)}
}

func (r *benchResult) record(expected, got domain.Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.matrix[expected]
	if !ok {
		row = make(map[domain.Tier]int)
		r.matrix[expected] = row
	}
	row[got]++
}

// counts returns exact matches, rows evaluated below their expected tier,
// rows evaluated above it, and the labelled total.
func (r *benchResult) counts() (exact, under, over, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for expected, row := range r.matrix {
		for got, n := range row {
			total += n
			switch {
			case got == expected:
				exact += n
			case got.Rank() < expected.Rank():
				under += n
			default:
				over += n
			}
		}
	}
	return exact, under, over, total
}

func runBench(cmd *cobra.Command, args []string) error {
	rows, err := readLabelledCSV(args[0], benchFlags.limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: no rows", args[0])
	}

	var eval evaluateFunc
	if benchFlags.url != "" {
		base := strings.TrimRight(benchFlags.url, "/")
		if err := checkHealth(cmd.Context(), base); err != nil {
			return fmt.Errorf("kestrel not reachable at %s: %w", base, err)
		}
		eval = httpEvaluator(base)
	} else {
		logger := config.NewLogger(domain.LoggingConfig{Level: "error", Format: "text"}, cmd.ErrOrStderr())
		svc, err := engine.NewService(cmd.Context(), engine.ServiceConfig{Logger: logger, RulesFile: benchFlags.rulesFile})
		if err != nil {
			return err
		}
		eval = func(ctx context.Context, req domain.SupplierRequest) (domain.Tier, int, error) {
			rec, err := svc.Evaluate(ctx, req)
			if err != nil {
				return "", 0, err
			}
			return rec.Result.FinalTier, rec.Result.Score, nil
		}
	}

	out := cmd.OutOrStdout()
	start := time.Now()
	result := runBenchmark(cmd.Context(), rows, eval, benchFlags.workers, out, benchFlags.verbose)
	printBenchResults(out, result, time.Since(start))

	if n := result.errors.Load(); n > 0 {
		return fmt.Errorf("%d of %d rows could not be evaluated", n, len(rows))
	}
	return nil
}

func checkHealth(ctx context.Context, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func httpEvaluator(base string) evaluateFunc {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ctx context.Context, s domain.SupplierRequest) (domain.Tier, int, error) {
		body, err := json.Marshal(s)
		if err != nil {
			return "", 0, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/evaluate", bytes.NewReader(body))
		if err != nil {
			return "", 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", 0, fmt.Errorf("status %d", resp.StatusCode)
		}

		var rec domain.EvaluationRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return "", 0, err
		}
		return rec.Result.FinalTier, rec.Result.Score, nil
	}
}

// readLabelledCSV parses a labelled supplier CSV. Empty cells are left out
// so that optional indicators take their defaults.
func readLabelledCSV(path string, limit int) ([]labelledSupplier, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range header {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	var rows []labelledSupplier
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := labelledSupplier{Request: domain.SupplierRequest{Indicators: make(map[string]any)}}
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" || i >= len(header) {
				continue
			}
			switch header[i] {
			case "supplier_id":
				row.Request.SupplierID = cell
			case "name":
				row.Request.Name = cell
			case "expected_tier":
				row.Expected = domain.Tier(strings.ToUpper(cell))
			default:
				row.Request.Indicators[header[i]] = parseCell(cell)
			}
		}

		if row.Expected != "" && !row.Expected.Valid() {
			return nil, fmt.Errorf("line %d: unknown expected tier %q", line, row.Expected)
		}
		if row.Request.SupplierID == "" {
			row.Request.SupplierID = fmt.Sprintf("row-%d", line)
		}

		rows = append(rows, row)
		if limit > 0 && len(rows) >= limit {
			break
		}
	}

	return rows, nil
}

// parseCell types a CSV cell: booleans, then integers, then floats, else text.
func parseCell(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && !isDigits(s) {
		return b
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func runBenchmark(ctx context.Context, rows []labelledSupplier, eval evaluateFunc, workers int, out io.Writer, verbose bool) *benchResult {
	if workers <= 0 {
		workers = 1
	}
	result := newBenchResult()

	work := make(chan labelledSupplier, 100)
	var printMu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range work {
				start := time.Now()
				tier, score, err := eval(ctx, row.Request)
				result.latencyMs.Add(time.Since(start).Milliseconds())
				result.processed.Add(1)

				if err != nil {
					result.errors.Add(1)
					if verbose {
						printMu.Lock()
						fmt.Fprintf(out, "ERROR %-12s %v\n", row.Request.SupplierID, err)
						printMu.Unlock()
					}
					continue
				}

				if row.Expected != "" {
					result.record(row.Expected, tier)
				}

				if verbose {
					mark := " "
					if row.Expected != "" && row.Expected != tier {
						mark = "x"
					}
					printMu.Lock()
					fmt.Fprintf(out, "%s %-12s expected %-8s got %-8s score %3d\n", mark, row.Request.SupplierID, row.Expected, tier, score)
					printMu.Unlock()
				}
			}
		}()
	}

	for _, row := range rows {
		work <- row
	}
	close(work)
	wg.Wait()

	return result
}

func printBenchResults(w io.Writer, r *benchResult, duration time.Duration) {
	tiers := []domain.Tier{domain.TierLow, domain.TierMedium, domain.TierHigh, domain.TierCritical}

	m := table.NewWriter()
	m.SetTitle("Expected (rows) vs evaluated (columns)")
	header := table.Row{""}
	for _, t := range tiers {
		header = append(header, t)
	}
	m.AppendHeader(header)
	r.mu.Lock()
	for _, expected := range tiers {
		row := table.Row{expected}
		for _, got := range tiers {
			row = append(row, r.matrix[expected][got])
		}
		m.AppendRow(row)
	}
	r.mu.Unlock()
	m.SetStyle(table.StyleLight)
	fmt.Fprintln(w, m.Render())

	exact, under, over, total := r.counts()
	processed := r.processed.Load()

	s := table.NewWriter()
	s.AppendRow(table.Row{"Processed", processed})
	s.AppendRow(table.Row{"Errors", r.errors.Load()})
	s.AppendRow(table.Row{"Labelled", total})
	if total > 0 {
		s.AppendRow(table.Row{"Exact agreement", fmt.Sprintf("%d (%.2f%%)", exact, pct(exact, total))})
		s.AppendRow(table.Row{"Risk understated", fmt.Sprintf("%d (%.2f%%)", under, pct(under, total))})
		s.AppendRow(table.Row{"Risk overstated", fmt.Sprintf("%d (%.2f%%)", over, pct(over, total))})
	}
	s.AppendRow(table.Row{"Duration", duration.Round(time.Millisecond)})
	if processed > 0 {
		s.AppendRow(table.Row{"Avg latency", fmt.Sprintf("%.2f ms", float64(r.latencyMs.Load())/float64(processed))})
		if secs := duration.Seconds(); secs > 0 {
			s.AppendRow(table.Row{"Throughput", fmt.Sprintf("%.2f suppliers/sec", float64(processed)/secs)})
		}
	}
	s.SetStyle(table.StyleLight)
	fmt.Fprintln(w, s.Render())
}

func pct(n, total int) float64 {
	return float64(n) / float64(total) * 100
}
