package rules

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// baseIndicators supplies the required indicators with neutral values.
func baseIndicators() map[string]any {
	return map[string]any{
		domain.IndCurrentRatio:       1.6,
		domain.IndDebtRatio:          0.5,
		domain.IndProfitMargin:       0.05,
		domain.IndOnTimeDeliveryRate: 90.0,
		domain.IndLegalCompliance:    true,
		domain.IndMarketRating:       3.5,
	}
}

func mustFacts(t *testing.T, overrides map[string]any) domain.FactSet {
	t.Helper()
	raw := baseIndicators()
	for k, v := range overrides {
		raw[k] = v
	}
	facts, err := domain.NewFactSet(domain.SupplierSchema(), raw)
	if err != nil {
		t.Fatalf("failed to build facts: %v", err)
	}
	return facts
}

func activated(acts []domain.Activation, id string) bool {
	for _, a := range acts {
		if a.RuleID == id {
			return true
		}
	}
	return false
}
