package domain

import "time"

// Category is a risk dimension that rules contribute to.
type Category string

const (
	CategoryFinancial    Category = "financial"
	CategoryOperational  Category = "operational"
	CategoryLegal        Category = "legal"
	CategoryReputational Category = "reputational"

	// CategoryComposite holds cross-category rules that read indicators
	// from more than one dimension.
	CategoryComposite Category = "composite"
)

var categories = []Category{
	CategoryFinancial,
	CategoryOperational,
	CategoryLegal,
	CategoryReputational,
	CategoryComposite,
}

// Categories returns every known category in presentation order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}

// Label returns the display name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryFinancial:
		return "Financial"
	case CategoryOperational:
		return "Operational"
	case CategoryLegal:
		return "Legal"
	case CategoryReputational:
		return "Reputational"
	case CategoryComposite:
		return "Composite"
	}
	return string(c)
}

// Severity is the qualitative weight class of a rule, independent of its impact.
type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from positive (0) to critical (4). Unknown severities rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityPositive:
		return 0
	case SeverityLow:
		return 1
	case SeverityModerate:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return -1
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// Predicate decides whether a rule holds for a fact set.
type Predicate func(FactSet) (bool, error)

// Justifier renders the reason a rule fired, citing the triggering values.
type Justifier func(FactSet) (string, error)

// Rule sources.
const (
	SourceBuiltin    = "builtin"
	SourceDefinition = "definition"
)

// Rule is an immutable catalog entry.
type Rule struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    Category `json:"category"`

	// Impact is signed: positive values increase risk, negative values reduce it.
	Impact   int      `json:"impact"`
	Severity Severity `json:"severity"`

	// Factor labels the risk driver for critical-factor reporting and
	// mitigation planning. Rules without one report under their Name.
	Factor string `json:"factor,omitempty"`

	Predicate Predicate `json:"-"`
	Justify   Justifier `json:"-"`

	Source     string `json:"source"`
	Expression string `json:"expression,omitempty"`
}

// FactorLabel returns the label reported when the rule is a critical factor.
func (r Rule) FactorLabel() string {
	if r.Factor != "" {
		return r.Factor
	}
	return r.Name
}

// Activation records one rule firing against one fact set.
type Activation struct {
	Sequence      int      `json:"sequence"`
	RuleID        string   `json:"ruleId"`
	RuleName      string   `json:"ruleName"`
	Category      Category `json:"category"`
	Impact        int      `json:"impact"`
	Severity      Severity `json:"severity"`
	Factor        string   `json:"factor"`
	Justification string   `json:"justification"`
}

// RuleDefinition is a declarative rule written in CEL. Definitions are
// compiled into ordinary Rules when a catalog is loaded.
type RuleDefinition struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category `json:"category" yaml:"category"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Impact      int      `json:"impact" yaml:"impact"`
	Factor      string   `json:"factor,omitempty" yaml:"factor,omitempty"`

	// Expression is a CEL boolean over the indicator variables.
	Expression string `json:"expression" yaml:"expression"`

	// Justification is a CEL string expression. When empty the rule's
	// name and the expression are used.
	Justification string `json:"justification,omitempty" yaml:"justification,omitempty"`

	Enabled bool `json:"enabled" yaml:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" yaml:"-"`
}

// MetaRule maps category outcomes and specific activations to a final tier.
// A meta-rule matches when every condition it declares holds:
//   - Categories: some listed category reaches MinLevel, and when
//     RequireSeverity is set that same category holds an activation at
//     least that severe.
//   - RuleIDs: at least one listed rule fired.
type MetaRule struct {
	ID              string     `json:"id"`
	Description     string     `json:"description"`
	Categories      []Category `json:"categories,omitempty"`
	MinLevel        Level      `json:"minLevel,omitempty"`
	RequireSeverity Severity   `json:"requireSeverity,omitempty"`
	RuleIDs         []string   `json:"ruleIds,omitempty"`
	Tier            Tier       `json:"tier"`
	Recommendation  string     `json:"recommendation"`
}

// Thresholds are the category cut-points. An aggregate above High is HIGH,
// above Medium is MEDIUM, otherwise LOW.
type Thresholds struct {
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// DefaultThresholds applies to categories that declare none.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 0, High: 20}
}

// Level maps an aggregate impact to a category level.
func (t Thresholds) Level(aggregate int) Level {
	switch {
	case aggregate > t.High:
		return LevelHigh
	case aggregate > t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ScoreBand is a fallback score policy entry: scores at or above Min map to Tier.
type ScoreBand struct {
	Min            int    `json:"min"`
	Tier           Tier   `json:"tier"`
	Recommendation string `json:"recommendation"`
}
