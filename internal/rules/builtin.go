package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// BuiltinVersion is the version of the built-in catalog.
const BuiltinVersion = "builtin-2026.2"

// builtin is the compact declaration form of a built-in rule. Predicates
// and justifications are plain functions over the fact set; failures
// surface as panics from the fact accessors and are contained by the
// evaluator.
type builtin struct {
	id       string
	name     string
	category domain.Category
	severity domain.Severity
	impact   int
	factor   string
	when     func(f domain.FactSet) bool
	why      func(f domain.FactSet) string
}

func (b builtin) rule() domain.Rule {
	when, why := b.when, b.why
	return domain.Rule{
		ID:        b.id,
		Name:      b.name,
		Category:  b.category,
		Severity:  b.severity,
		Impact:    b.impact,
		Factor:    b.factor,
		Predicate: func(f domain.FactSet) (bool, error) { return when(f), nil },
		Justify:   func(f domain.FactSet) (string, error) { return why(f), nil },
		Source:    domain.SourceBuiltin,
	}
}

// BuiltinRules returns the built-in rules in catalog order: financial,
// operational, legal, reputational, then composite.
func BuiltinRules() []domain.Rule {
	groups := [][]builtin{
		financialRules,
		operationalRules,
		legalRules,
		reputationalRules,
		compositeRules,
	}

	var out []domain.Rule
	for _, g := range groups {
		for _, b := range g {
			out = append(out, b.rule())
		}
	}
	return out
}

// DefaultSpec returns the built-in catalog content.
func DefaultSpec() Spec {
	return Spec{
		Version:    BuiltinVersion,
		Schema:     domain.SupplierSchema(),
		Rules:      BuiltinRules(),
		MetaRules:  DefaultMetaRules(),
		Thresholds: DefaultThresholds(),
		ScoreBands: DefaultScoreBands(),
	}
}

// DefaultCatalog builds the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog(DefaultSpec())
}
