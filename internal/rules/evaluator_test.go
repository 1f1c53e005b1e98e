package rules

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestEvaluateSequence(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	acts := Evaluate(mustFacts(t, nil), catalog)
	if len(acts) == 0 {
		t.Fatal("expected activations for neutral supplier")
	}

	order := make(map[string]int, catalog.Len())
	for i, r := range catalog.All() {
		order[r.ID] = i
	}

	for i, a := range acts {
		if a.Sequence != i+1 {
			t.Errorf("activation %d has sequence %d", i, a.Sequence)
		}
		if a.Justification == "" {
			t.Errorf("activation %s has no justification", a.RuleID)
		}
		if i > 0 && order[acts[i-1].RuleID] > order[a.RuleID] {
			t.Errorf("activations out of catalog order: %s before %s", acts[i-1].RuleID, a.RuleID)
		}
	}
}

func TestEvaluateBoundaries(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	tests := []struct {
		name      string
		overrides map[string]any
		rule      string
		want      bool
	}{
		{"NewSupplierBelowTwoYears", map[string]any{domain.IndYearsInMarket: 1.9}, "RO-002", true},
		{"NewSupplierAtTwoYears", map[string]any{domain.IndYearsInMarket: 2}, "RO-002", false},
		{"CriticalLiquidity", map[string]any{domain.IndCurrentRatio: 0.99}, "RF-001", true},
		{"LiquidityAtOne", map[string]any{domain.IndCurrentRatio: 1.0}, "RF-001", false},
		{"SoundLiquidityAtThreshold", map[string]any{domain.IndCurrentRatio: 1.5}, "RF-003", true},
		{"LegalNonCompliance", map[string]any{domain.IndLegalCompliance: false}, "RL-001", true},
		{"PendingLitigation", map[string]any{domain.IndActiveLawsuits: 2}, "RL-004", true},
		{"LitigationExposureStartsAtThree", map[string]any{domain.IndActiveLawsuits: 3}, "RL-005", true},
		{"PendingLitigationStopsAtThree", map[string]any{domain.IndActiveLawsuits: 3}, "RL-004", false},
		{"ManufacturingNeedsEnvironmental", map[string]any{domain.IndIndustry: "manufacturing"}, "RL-002", true},
		{"ServicesSkipEnvironmental", map[string]any{domain.IndIndustry: "services"}, "RL-002", false},
		{"SingleSecurityIncident", map[string]any{domain.IndSecurityIncidents: 1}, "RR-004", true},
		{"InsolventAndNonCompliant", map[string]any{domain.IndProfitMargin: -0.1, domain.IndLegalCompliance: false}, "CX-001", true},
		{"ImplausiblePaymentRate", map[string]any{domain.IndOnTimePaymentRate: 140.0}, "RF-011", true},
		{"LicencesNotAssessed", nil, "RL-008", false},
		{"ExpiredLicences", map[string]any{domain.IndLicensesCurrent: false}, "RL-008", true},
		{"CurrentLicences", map[string]any{domain.IndLicensesCurrent: true}, "RL-007", true},
		{"CurrentLicencesNeedCompliance", map[string]any{domain.IndLicensesCurrent: true, domain.IndLegalCompliance: false}, "RL-007", false},
		{"TaxArrears", map[string]any{domain.IndTaxCertificateCurrent: false}, "RL-010", true},
		{"LabourNonCompliance", map[string]any{domain.IndLabourCompliant: false}, "RL-012", true},
		{"FullLegalCompliance", fullyAttested(0), "RL-013", true},
		{"FullLegalComplianceNeedsNoLawsuits", fullyAttested(1), "RL-013", false},
		{"LegalCrisis", map[string]any{domain.IndLicensesCurrent: false, domain.IndTaxCertificateCurrent: false, domain.IndActiveLawsuits: 3}, "RL-014", true},
		{"LegalCrisisNeedsThreeLawsuits", map[string]any{domain.IndLicensesCurrent: false, domain.IndTaxCertificateCurrent: false, domain.IndActiveLawsuits: 2}, "RL-014", false},
		{"IsolatedLegalGap", map[string]any{domain.IndLabourCompliant: false, domain.IndActiveLawsuits: 1}, "RL-015", true},
		{"LegalGapsWithLitigation", map[string]any{domain.IndLabourCompliant: false, domain.IndActiveLawsuits: 2}, "RL-015", false},
		{"EnvironmentalPracticesNotAssessed", nil, "RR-011", false},
		{"NoEnvironmentalPractices", map[string]any{domain.IndEnvironmentalResponsibility: false}, "RR-011", true},
		{"PositiveESG", map[string]any{domain.IndEthicalPracticesVerified: true, domain.IndEnvironmentalResponsibility: true}, "RR-012", true},
		{"ESGNeedsEthics", map[string]any{domain.IndEnvironmentalResponsibility: true}, "RR-012", false},
		{"HighlyReliable", map[string]any{domain.IndMarketRating: 4.5, domain.IndEthicalPracticesVerified: true, domain.IndEnvironmentalResponsibility: true}, "RR-013", true},
		{"HighlyReliableNeedsCleanSecurity", map[string]any{domain.IndMarketRating: 4.8, domain.IndEthicalPracticesVerified: true, domain.IndEnvironmentalResponsibility: true, domain.IndSecurityIncidents: 1}, "RR-013", false},
		{"TechnologyLowersLiquidityFloor", map[string]any{domain.IndIndustry: "technology", domain.IndCurrentRatio: 0.95}, "RF-001", false},
		{"TechnologyTightLiquidity", map[string]any{domain.IndIndustry: "technology", domain.IndCurrentRatio: 0.95}, "RF-002", true},
		{"ServicesRaiseLiquidityFloor", map[string]any{domain.IndIndustry: "services", domain.IndCurrentRatio: 1.05}, "RF-001", true},
		{"ConstructionToleratesLeverage", map[string]any{domain.IndIndustry: "construction", domain.IndDebtRatio: 0.8}, "RF-004", false},
		{"GeneralDebtCeiling", map[string]any{domain.IndDebtRatio: 0.8}, "RF-004", true},
		{"TechnologyMarginBenchmark", map[string]any{domain.IndIndustry: "technology", domain.IndProfitMargin: 0.16}, "RF-008", false},
		{"UnknownIndustryIsNeutral", map[string]any{domain.IndIndustry: "mining", domain.IndCurrentRatio: 0.99}, "RF-001", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acts := Evaluate(mustFacts(t, tt.overrides), catalog)
			if got := activated(acts, tt.rule); got != tt.want {
				t.Errorf("%s activated = %v, want %v", tt.rule, got, tt.want)
			}
		})
	}
}

func fullyAttested(lawsuits int) map[string]any {
	return map[string]any{
		domain.IndLicensesCurrent:       true,
		domain.IndTaxCertificateCurrent: true,
		domain.IndLabourCompliant:       true,
		domain.IndActiveLawsuits:        lawsuits,
	}
}

func TestEvaluateIndustryJustification(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	acts := Evaluate(mustFacts(t, map[string]any{domain.IndIndustry: "services", domain.IndCurrentRatio: 1.05}), catalog)
	for _, a := range acts {
		if a.RuleID != "RF-001" {
			continue
		}
		if !strings.Contains(a.Justification, "below the 1.10 minimum") {
			t.Errorf("expected industry-adjusted cut-point in %q", a.Justification)
		}
		return
	}
	t.Error("expected RF-001 to fire for a services supplier at 1.05")
}

func TestEvaluateLegalGapsJustification(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	acts := Evaluate(mustFacts(t, map[string]any{
		domain.IndLicensesCurrent: false,
		domain.IndLabourCompliant: false,
	}), catalog)
	for _, a := range acts {
		if a.RuleID == "RL-015" {
			if a.Justification != "licenses_current, labour_compliant not current with 0 active lawsuit(s)" {
				t.Errorf("unexpected justification %q", a.Justification)
			}
			return
		}
	}
	t.Error("expected RL-015 to fire")
}

func TestIndustryAdjustments(t *testing.T) {
	adj := IndustryAdjustments()
	for _, industry := range []string{"general", "manufacturing", "services", "technology", "construction", "logistics"} {
		if _, ok := adj[industry]; !ok {
			t.Errorf("missing adjustment for %s", industry)
		}
	}

	adj["technology"] = IndustryAdjustment{}
	if AdjustmentFor("technology").Liquidity != 0.9 {
		t.Error("IndustryAdjustments must return a copy")
	}
	if got := AdjustmentFor("mining"); got != (IndustryAdjustment{Liquidity: 1, Debt: 1, Margin: 1}) {
		t.Errorf("expected neutral adjustment for unknown industry, got %+v", got)
	}
}

func TestEvaluateContainsFailures(t *testing.T) {
	always := func(domain.FactSet) (bool, error) { return true, nil }
	text := func(domain.FactSet) (string, error) { return "fired", nil }

	spec := DefaultSpec()
	spec.Rules = []domain.Rule{
		{ID: "T-001", Name: "ok", Category: domain.CategoryFinancial, Severity: domain.SeverityLow, Impact: 1,
			Predicate: always, Justify: text},
		{ID: "T-002", Name: "errors", Category: domain.CategoryFinancial, Severity: domain.SeverityLow, Impact: 1,
			Predicate: func(domain.FactSet) (bool, error) { return false, errors.New("boom") }, Justify: text},
		{ID: "T-003", Name: "panics", Category: domain.CategoryLegal, Severity: domain.SeverityLow, Impact: 1,
			Predicate: func(f domain.FactSet) (bool, error) { return f.Flag(domain.IndCurrentRatio), nil }, Justify: text},
		{ID: "T-004", Name: "bad justification", Category: domain.CategoryLegal, Severity: domain.SeverityLow, Impact: 1,
			Predicate: always, Justify: func(domain.FactSet) (string, error) { panic("no words") }},
		{ID: "T-005", Name: "ok again", Category: domain.CategoryReputational, Severity: domain.SeverityLow, Impact: 1,
			Predicate: always, Justify: text},
	}
	spec.MetaRules = nil

	catalog, err := NewCatalog(spec)
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var failures []*domain.RulePredicateError
	acts := Evaluate(mustFacts(t, nil), catalog,
		WithLogger(logger),
		WithFailureHook(func(e *domain.RulePredicateError) { failures = append(failures, e) }),
	)

	if len(acts) != 2 {
		t.Fatalf("expected 2 activations, got %d: %+v", len(acts), acts)
	}
	if acts[0].RuleID != "T-001" || acts[1].RuleID != "T-005" {
		t.Errorf("unexpected activations %s, %s", acts[0].RuleID, acts[1].RuleID)
	}
	if acts[1].Sequence != 2 {
		t.Errorf("expected contiguous sequence, got %d", acts[1].Sequence)
	}

	if len(failures) != 3 {
		t.Fatalf("expected 3 contained failures, got %d", len(failures))
	}
	if failures[0].RuleID != "T-002" || failures[0].Stage != "predicate" {
		t.Errorf("unexpected first failure %+v", failures[0])
	}
	if failures[2].RuleID != "T-004" || failures[2].Stage != "justification" {
		t.Errorf("unexpected last failure %+v", failures[2])
	}
	for _, f := range failures {
		if !errors.Is(f, domain.ErrRulePredicate) {
			t.Errorf("failure %s should match ErrRulePredicate", f.RuleID)
		}
	}

	if !strings.Contains(buf.String(), "rule_id=T-003") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}

func TestEvaluateIsPure(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	facts := mustFacts(t, map[string]any{domain.IndLegalCompliance: false})
	first := Evaluate(facts, catalog)
	second := Evaluate(facts, catalog)

	if len(first) != len(second) {
		t.Fatalf("activation counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("activation %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}
