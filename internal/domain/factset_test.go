package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func requiredIndicators() map[string]any {
	return map[string]any{
		IndCurrentRatio:       1.6,
		IndDebtRatio:          0.5,
		IndProfitMargin:       0.05,
		IndOnTimeDeliveryRate: 90.0,
		IndLegalCompliance:    true,
		IndMarketRating:       3.5,
	}
}

func TestSupplierSchema(t *testing.T) {
	s := SupplierSchema()
	if s.Version() != SupplierSchemaVersion {
		t.Errorf("expected version %s, got %s", SupplierSchemaVersion, s.Version())
	}
	if len(s.Indicators()) != 23 {
		t.Errorf("expected 23 indicators, got %d", len(s.Indicators()))
	}

	want := []string{IndCurrentRatio, IndDebtRatio, IndProfitMargin, IndOnTimeDeliveryRate, IndLegalCompliance, IndMarketRating}
	if got := s.Required(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected required %v, got %v", want, got)
	}

	for _, ind := range s.Indicators() {
		if !ind.Required && ind.Default == nil {
			t.Errorf("optional indicator %s has no default", ind.Name)
		}
		if !ind.Category.Valid() {
			t.Errorf("indicator %s has invalid category %q", ind.Name, ind.Category)
		}
	}
}

func TestNewSchemaReplacesDuplicates(t *testing.T) {
	s := NewSchema("test/v1",
		Indicator{Name: "a", Kind: KindNumber},
		Indicator{Name: "b", Kind: KindFlag},
		Indicator{Name: "a", Kind: KindCount},
	)
	if len(s.Indicators()) != 2 {
		t.Fatalf("expected 2 indicators, got %d", len(s.Indicators()))
	}
	ind, ok := s.Lookup("a")
	if !ok || ind.Kind != KindCount {
		t.Errorf("expected later declaration to win, got %+v", ind)
	}
	if s.Indicators()[0].Name != "a" {
		t.Error("expected replacement to keep declaration position")
	}
}

func TestNewFactSet(t *testing.T) {
	t.Run("AppliesDefaults", func(t *testing.T) {
		facts, err := NewFactSet(nil, requiredIndicators())
		if err != nil {
			t.Fatalf("NewFactSet failed: %v", err)
		}
		if facts.SchemaVersion() != SupplierSchemaVersion {
			t.Errorf("unexpected schema version %s", facts.SchemaVersion())
		}
		if len(facts.Defaulted()) != 17 {
			t.Errorf("expected 17 defaulted indicators, got %v", facts.Defaulted())
		}
		if facts.Number(IndOnTimePaymentRate) != 100 {
			t.Errorf("expected default payment rate 100, got %v", facts.Number(IndOnTimePaymentRate))
		}
		if facts.Count(IndActiveLawsuits) != 0 {
			t.Errorf("expected default lawsuits 0, got %d", facts.Count(IndActiveLawsuits))
		}
		if facts.Text(IndIndustry) != IndustryGeneral {
			t.Errorf("expected default industry general, got %q", facts.Text(IndIndustry))
		}
		if facts.Flag(IndQualityCertified) {
			t.Error("expected default quality certification false")
		}
	})

	t.Run("CoercesNumbers", func(t *testing.T) {
		raw := requiredIndicators()
		raw[IndCurrentRatio] = 2
		raw[IndActiveLawsuits] = 3.0
		raw[IndCustomerComplaints] = json.Number("4")
		raw[IndYearsInMarket] = int32(7)

		facts, err := NewFactSet(nil, raw)
		if err != nil {
			t.Fatalf("NewFactSet failed: %v", err)
		}
		if v, _ := facts.Value(IndCurrentRatio); v != 2.0 {
			t.Errorf("expected float64 2, got %T %v", v, v)
		}
		if v, _ := facts.Value(IndActiveLawsuits); v != int64(3) {
			t.Errorf("expected int64 3, got %T %v", v, v)
		}
		if facts.Count(IndCustomerComplaints) != 4 {
			t.Errorf("expected 4 complaints, got %d", facts.Count(IndCustomerComplaints))
		}
		if facts.Number(IndActiveLawsuits) != 3 {
			t.Error("expected counts readable as numbers")
		}
	})

	t.Run("NilCountsAsAbsent", func(t *testing.T) {
		raw := requiredIndicators()
		raw[IndInsuranceCurrent] = nil
		facts, err := NewFactSet(nil, raw)
		if err != nil {
			t.Fatalf("NewFactSet failed: %v", err)
		}
		if facts.Flag(IndInsuranceCurrent) {
			t.Error("expected nil to take the default")
		}
	})

	t.Run("IgnoresUnknownKeys", func(t *testing.T) {
		raw := requiredIndicators()
		raw["favourite_colour"] = "teal"
		facts, err := NewFactSet(nil, raw)
		if err != nil {
			t.Fatalf("NewFactSet failed: %v", err)
		}
		if facts.Has("favourite_colour") {
			t.Error("unknown key leaked into fact set")
		}
	})

	t.Run("RejectsOverflowingUnsignedCounts", func(t *testing.T) {
		raw := requiredIndicators()
		raw[IndActiveLawsuits] = uint(math.MaxUint64)
		raw[IndSecurityIncidents] = uint64(math.MaxUint64)

		_, err := NewFactSet(nil, raw)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if got := strings.Join(verr.FieldNames(), ","); got != "active_lawsuits,security_incidents" {
			t.Errorf("expected both counts rejected, got %s", got)
		}
		for _, f := range verr.Fields {
			if f.Reason != ReasonType {
				t.Errorf("expected type problem for %s, got %s", f.Field, f.Reason)
			}
		}
	})

	t.Run("ReportsEveryProblem", func(t *testing.T) {
		raw := map[string]any{
			IndCurrentRatio:    "1.5",
			IndLegalCompliance: "yes",
			IndActiveLawsuits:  2.5,
			IndMarketRating:    4.0,
		}
		_, err := NewFactSet(nil, raw)

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if !errors.Is(err, ErrValidation) {
			t.Error("expected ErrValidation")
		}

		want := "active_lawsuits,current_ratio,debt_ratio,legal_compliance,on_time_delivery_rate,profit_margin"
		if got := strings.Join(verr.FieldNames(), ","); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
		for _, f := range verr.Fields {
			if f.Field == IndCurrentRatio && (f.Reason != ReasonType || f.Got != "string") {
				t.Errorf("unexpected current_ratio problem %+v", f)
			}
			if f.Field == IndDebtRatio && f.Reason != ReasonMissing {
				t.Errorf("unexpected debt_ratio problem %+v", f)
			}
		}
		if !strings.Contains(err.Error(), "debt_ratio: required number is missing") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}

func TestFactSetIsolation(t *testing.T) {
	raw := requiredIndicators()
	facts, err := NewFactSet(nil, raw)
	if err != nil {
		t.Fatalf("NewFactSet failed: %v", err)
	}

	raw[IndCurrentRatio] = 0.1
	if facts.Number(IndCurrentRatio) != 1.6 {
		t.Error("fact set must not alias the raw map")
	}

	values := facts.Values()
	values[IndCurrentRatio] = 0.2
	if facts.Number(IndCurrentRatio) != 1.6 {
		t.Error("Values must return a copy")
	}
}

func TestFactSetAttested(t *testing.T) {
	raw := requiredIndicators()
	raw[IndLicensesCurrent] = false
	raw[IndLabourCompliant] = true
	facts, err := NewFactSet(nil, raw)
	if err != nil {
		t.Fatalf("NewFactSet failed: %v", err)
	}

	if v, ok := facts.Attested(IndLicensesCurrent); !ok || v {
		t.Errorf("expected explicit false to be attested, got %v %v", v, ok)
	}
	if v, ok := facts.Attested(IndLabourCompliant); !ok || !v {
		t.Errorf("expected explicit true to be attested, got %v %v", v, ok)
	}
	if _, ok := facts.Attested(IndTaxCertificateCurrent); ok {
		t.Error("expected defaulted flag to be unattested")
	}
	if v, ok := facts.Attested(IndLegalCompliance); !ok || !v {
		t.Errorf("expected required flag to be attested, got %v %v", v, ok)
	}
}

func TestFactSetAccessorPanics(t *testing.T) {
	facts, err := NewFactSet(nil, requiredIndicators())
	if err != nil {
		t.Fatalf("NewFactSet failed: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic reading a number as a flag")
		}
	}()
	facts.Flag(IndCurrentRatio)
}

func TestOrdering(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityHigh) || SeverityLow.AtLeast(SeverityModerate) {
		t.Error("unexpected severity ordering")
	}
	if Severity("bogus").Valid() || !SeverityPositive.Valid() {
		t.Error("unexpected severity validity")
	}
	if TierCritical.Rank() <= TierHigh.Rank() || TierMedium.Rank() <= TierLow.Rank() {
		t.Error("unexpected tier ordering")
	}

	th := Thresholds{Medium: 5, High: 25}
	for agg, want := range map[int]Level{-10: LevelLow, 5: LevelLow, 6: LevelMedium, 25: LevelMedium, 26: LevelHigh} {
		if got := th.Level(agg); got != want {
			t.Errorf("Level(%d) = %s, want %s", agg, got, want)
		}
	}
}

func TestEvaluationResultHelpers(t *testing.T) {
	r := EvaluationResult{
		FinalTier: TierHigh,
		Alerts: []Alert{
			{Severity: SeverityCritical, RuleID: "A"},
			{Severity: SeverityHigh, RuleID: "B"},
			{Severity: SeverityHigh, RuleID: "C"},
		},
	}

	counts := r.AlertCounts()
	if counts[SeverityHigh] != 2 || counts[SeverityCritical] != 1 {
		t.Errorf("unexpected alert counts %v", counts)
	}
	if o := r.Outcome(CategoryLegal); o.Level != LevelLow || o.Category != CategoryLegal {
		t.Errorf("expected LOW default outcome, got %+v", o)
	}

	plain := r.Plain()
	if plain["finalTier"] != "HIGH" {
		t.Errorf("expected plain finalTier HIGH, got %v", plain["finalTier"])
	}
	if alerts, ok := plain["alerts"].([]any); !ok || len(alerts) != 3 {
		t.Errorf("expected plain alerts slice, got %T", plain["alerts"])
	}
}
