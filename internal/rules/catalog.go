// Package rules holds the supplier risk rule catalog, the CEL compiler for
// declarative rule definitions, and the single-pass rule evaluator.
package rules

import (
	"fmt"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Spec is the unvalidated content of a catalog.
type Spec struct {
	Version    string
	Schema     *domain.Schema
	Rules      []domain.Rule
	MetaRules  []domain.MetaRule
	Thresholds map[domain.Category]domain.Thresholds
	ScoreBands []domain.ScoreBand
}

// Catalog is a validated, read-only rule catalog. It is safe for
// concurrent use by any number of evaluations.
type Catalog struct {
	version    string
	schema     *domain.Schema
	rules      []domain.Rule
	byID       map[string]int
	metaRules  []domain.MetaRule
	thresholds map[domain.Category]domain.Thresholds
	bands      []domain.ScoreBand
}

// NewCatalog validates spec and freezes it. Every integrity problem is
// reported in a single *domain.CatalogIntegrityError.
func NewCatalog(spec Spec) (*Catalog, error) {
	c := &Catalog{
		version:    spec.Version,
		schema:     spec.Schema,
		byID:       make(map[string]int, len(spec.Rules)),
		thresholds: make(map[domain.Category]domain.Thresholds, len(spec.Thresholds)),
	}
	if c.version == "" {
		c.version = "unversioned"
	}
	if c.schema == nil {
		c.schema = domain.SupplierSchema()
	}

	var problems []string

	c.rules = make([]domain.Rule, 0, len(spec.Rules))
	for i, r := range spec.Rules {
		if r.ID == "" {
			problems = append(problems, fmt.Sprintf("rule #%d has no id", i+1))
			continue
		}
		if _, dup := c.byID[r.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate rule id %s", r.ID))
			continue
		}
		if !r.Category.Valid() {
			problems = append(problems, fmt.Sprintf("rule %s has unknown category %q", r.ID, r.Category))
		}
		if !r.Severity.Valid() {
			problems = append(problems, fmt.Sprintf("rule %s has unknown severity %q", r.ID, r.Severity))
		}
		if r.Predicate == nil {
			problems = append(problems, fmt.Sprintf("rule %s has no predicate", r.ID))
		}
		if r.Justify == nil {
			problems = append(problems, fmt.Sprintf("rule %s has no justification", r.ID))
		}
		if r.Source == "" {
			r.Source = domain.SourceBuiltin
		}
		c.byID[r.ID] = len(c.rules)
		c.rules = append(c.rules, r)
	}

	problems = append(problems, c.checkMetaRules(spec.MetaRules)...)

	for cat, t := range spec.Thresholds {
		if !cat.Valid() {
			problems = append(problems, fmt.Sprintf("thresholds declared for unknown category %q", cat))
			continue
		}
		if t.High < t.Medium {
			problems = append(problems, fmt.Sprintf("%s thresholds: high (%d) is below medium (%d)", cat, t.High, t.Medium))
			continue
		}
		c.thresholds[cat] = t
	}

	if len(spec.ScoreBands) == 0 {
		problems = append(problems, "no score bands declared")
	}
	c.bands = make([]domain.ScoreBand, 0, len(spec.ScoreBands))
	for _, b := range spec.ScoreBands {
		if !b.Tier.Valid() {
			problems = append(problems, fmt.Sprintf("score band %d has unknown tier %q", b.Min, b.Tier))
			continue
		}
		c.bands = append(c.bands, b)
	}
	sort.SliceStable(c.bands, func(i, j int) bool { return c.bands[i].Min > c.bands[j].Min })

	if len(problems) > 0 {
		return nil, &domain.CatalogIntegrityError{Problems: problems}
	}
	return c, nil
}

func (c *Catalog) checkMetaRules(metas []domain.MetaRule) []string {
	var problems []string
	seen := make(map[string]bool, len(metas))

	for i, m := range metas {
		name := m.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			problems = append(problems, fmt.Sprintf("meta-rule %s has no id", name))
		} else if seen[m.ID] {
			problems = append(problems, fmt.Sprintf("duplicate meta-rule id %s", m.ID))
		}
		seen[m.ID] = true

		if len(m.Categories) == 0 && len(m.RuleIDs) == 0 {
			problems = append(problems, fmt.Sprintf("meta-rule %s has no condition", name))
		}
		for _, cat := range m.Categories {
			if !cat.Valid() {
				problems = append(problems, fmt.Sprintf("meta-rule %s references unknown category %q", name, cat))
			}
		}
		if len(m.Categories) > 0 && m.MinLevel.Rank() < 0 {
			problems = append(problems, fmt.Sprintf("meta-rule %s has unknown level %q", name, m.MinLevel))
		}
		if m.RequireSeverity != "" && !m.RequireSeverity.Valid() {
			problems = append(problems, fmt.Sprintf("meta-rule %s has unknown severity %q", name, m.RequireSeverity))
		}
		for _, id := range m.RuleIDs {
			if _, ok := c.byID[id]; !ok {
				problems = append(problems, fmt.Sprintf("meta-rule %s references unknown rule %s", name, id))
			}
		}
		if !m.Tier.Valid() {
			problems = append(problems, fmt.Sprintf("meta-rule %s has unknown tier %q", name, m.Tier))
		}
	}

	if len(problems) == 0 {
		c.metaRules = make([]domain.MetaRule, len(metas))
		copy(c.metaRules, metas)
	}
	return problems
}

// Version returns the catalog version.
func (c *Catalog) Version() string { return c.version }

// Schema returns the indicator schema the rules are written against.
func (c *Catalog) Schema() *domain.Schema { return c.schema }

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// All returns every rule in declaration order.
func (c *Catalog) All() []domain.Rule {
	out := make([]domain.Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// RulesFor returns the rules of one category in declaration order.
func (c *Catalog) RulesFor(cat domain.Category) []domain.Rule {
	var out []domain.Rule
	for _, r := range c.rules {
		if r.Category == cat {
			out = append(out, r)
		}
	}
	return out
}

// Rule returns the rule with the given id.
func (c *Catalog) Rule(id string) (domain.Rule, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Rule{}, false
	}
	return c.rules[i], true
}

// MetaRules returns the meta-rules in priority order.
func (c *Catalog) MetaRules() []domain.MetaRule {
	out := make([]domain.MetaRule, len(c.metaRules))
	copy(out, c.metaRules)
	return out
}

// Thresholds returns the cut-points for a category, or the default policy
// when the category declares none.
func (c *Catalog) Thresholds(cat domain.Category) domain.Thresholds {
	if t, ok := c.thresholds[cat]; ok {
		return t
	}
	return domain.DefaultThresholds()
}

// ScoreBands returns the fallback score bands, highest minimum first.
func (c *Catalog) ScoreBands() []domain.ScoreBand {
	out := make([]domain.ScoreBand, len(c.bands))
	copy(out, c.bands)
	return out
}

// Spec returns a copy of the catalog's content, suitable for extending
// into a new catalog.
func (c *Catalog) Spec() Spec {
	thresholds := make(map[domain.Category]domain.Thresholds, len(c.thresholds))
	for k, v := range c.thresholds {
		thresholds[k] = v
	}
	return Spec{
		Version:    c.version,
		Schema:     c.schema,
		Rules:      c.All(),
		MetaRules:  c.MetaRules(),
		Thresholds: thresholds,
		ScoreBands: c.ScoreBands(),
	}
}
