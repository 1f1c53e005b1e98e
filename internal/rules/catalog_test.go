package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	if catalog.Version() != BuiltinVersion {
		t.Errorf("expected version %s, got %s", BuiltinVersion, catalog.Version())
	}
	if catalog.Len() != 50 {
		t.Errorf("expected 50 built-in rules, got %d", catalog.Len())
	}
	if len(catalog.MetaRules()) != 3 {
		t.Errorf("expected 3 meta-rules, got %d", len(catalog.MetaRules()))
	}

	r, ok := catalog.Rule("RL-001")
	if !ok {
		t.Fatal("expected RL-001 in catalog")
	}
	if r.Severity != domain.SeverityCritical || r.Impact != 30 {
		t.Errorf("unexpected RL-001: severity %s impact %d", r.Severity, r.Impact)
	}
	if r.Source != domain.SourceBuiltin {
		t.Errorf("expected builtin source, got %q", r.Source)
	}

	if _, ok := catalog.Rule("RX-999"); ok {
		t.Error("expected unknown rule lookup to fail")
	}

	for _, r := range catalog.RulesFor(domain.CategoryLegal) {
		if r.Category != domain.CategoryLegal {
			t.Errorf("RulesFor(legal) returned %s of category %s", r.ID, r.Category)
		}
	}

	bands := catalog.ScoreBands()
	for i := 1; i < len(bands); i++ {
		if bands[i-1].Min < bands[i].Min {
			t.Errorf("score bands not ordered highest first: %+v", bands)
		}
	}
}

func TestCatalogThresholdFallback(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	if got := catalog.Thresholds(domain.CategoryReputational); got.Medium != 5 || got.High != 25 {
		t.Errorf("unexpected reputational thresholds %+v", got)
	}
	if got := catalog.Thresholds(domain.CategoryComposite); got != domain.DefaultThresholds() {
		t.Errorf("expected composite to use default thresholds, got %+v", got)
	}
}

func TestCatalogAccessorsReturnCopies(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	all := catalog.All()
	all[0].ID = "mutated"
	if catalog.All()[0].ID == "mutated" {
		t.Error("All must not expose catalog storage")
	}

	metas := catalog.MetaRules()
	metas[0].Tier = domain.TierLow
	if catalog.MetaRules()[0].Tier == domain.TierLow {
		t.Error("MetaRules must not expose catalog storage")
	}
}

func TestCatalogIntegrity(t *testing.T) {
	never := func(domain.FactSet) (bool, error) { return false, nil }
	text := func(domain.FactSet) (string, error) { return "", nil }

	spec := DefaultSpec()
	spec.Rules = []domain.Rule{
		{ID: "R-1", Category: domain.CategoryFinancial, Severity: domain.SeverityLow, Predicate: never, Justify: text},
		{ID: "R-1", Category: domain.CategoryFinancial, Severity: domain.SeverityLow, Predicate: never, Justify: text},
		{ID: "R-2", Category: "weather", Severity: domain.SeverityLow, Predicate: never, Justify: text},
		{ID: "R-3", Category: domain.CategoryLegal, Severity: domain.SeverityLow},
	}
	spec.MetaRules = []domain.MetaRule{
		{ID: "MR-X", RuleIDs: []string{"R-404"}, Tier: domain.TierHigh},
	}
	spec.ScoreBands = nil

	_, err := NewCatalog(spec)
	if !errors.Is(err, domain.ErrCatalogIntegrity) {
		t.Fatalf("expected catalog integrity error, got %v", err)
	}

	var cerr *domain.CatalogIntegrityError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CatalogIntegrityError, got %T", err)
	}

	wants := []string{
		"duplicate rule id R-1",
		`rule R-2 has unknown category "weather"`,
		"rule R-3 has no predicate",
		"rule R-3 has no justification",
		"meta-rule MR-X references unknown rule R-404",
		"no score bands declared",
	}
	joined := strings.Join(cerr.Problems, "\n")
	for _, want := range wants {
		if !strings.Contains(joined, want) {
			t.Errorf("expected problem %q in:\n%s", want, joined)
		}
	}
}

func TestCatalogSpecRoundTrip(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("failed to build default catalog: %v", err)
	}

	again, err := NewCatalog(catalog.Spec())
	if err != nil {
		t.Fatalf("failed to rebuild catalog from its spec: %v", err)
	}
	if again.Len() != catalog.Len() || again.Version() != catalog.Version() {
		t.Errorf("rebuilt catalog differs: %d rules %s", again.Len(), again.Version())
	}
}
