package decision

import "github.com/opensource-finance/kestrel/internal/domain"

// Aggregate sums impacts per category and maps each sum to a level using
// the category's thresholds. Every known category is present in the
// result. Summation is order-independent, so presentation order of the
// activations never affects the outcome.
func Aggregate(activations []domain.Activation, thresholds func(domain.Category) domain.Thresholds) map[domain.Category]domain.CategoryOutcome {
	if thresholds == nil {
		thresholds = func(domain.Category) domain.Thresholds { return domain.DefaultThresholds() }
	}

	sums := make(map[domain.Category]int)
	counts := make(map[domain.Category]int)
	for _, a := range activations {
		sums[a.Category] += a.Impact
		counts[a.Category]++
	}

	out := make(map[domain.Category]domain.CategoryOutcome)
	for _, c := range domain.Categories() {
		out[c] = domain.CategoryOutcome{
			Category:        c,
			AggregateImpact: sums[c],
			Level:           thresholds(c).Level(sums[c]),
			Activations:     counts[c],
		}
	}
	return out
}
