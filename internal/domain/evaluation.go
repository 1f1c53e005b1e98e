package domain

import (
	"encoding/json"
	"time"
)

// Level is a per-category risk level.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Rank orders levels from LOW (0) to HIGH (2). Unknown levels rank -1.
func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 0
	case LevelMedium:
		return 1
	case LevelHigh:
		return 2
	}
	return -1
}

// Tier is the final risk classification.
type Tier string

const (
	TierLow      Tier = "LOW"
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierCritical Tier = "CRITICAL"
)

// Rank orders tiers from LOW (0) to CRITICAL (3). Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierLow:
		return 0
	case TierMedium:
		return 1
	case TierHigh:
		return 2
	case TierCritical:
		return 3
	}
	return -1
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool { return t.Rank() >= 0 }

// CategoryOutcome is the aggregate of one category's activations.
type CategoryOutcome struct {
	Category        Category `json:"category"`
	AggregateImpact int      `json:"aggregateImpact"`
	Level           Level    `json:"level"`
	Activations     int      `json:"activations"`
}

// TraceEntry is an activation annotated with when the trace was generated.
type TraceEntry struct {
	Activation
	GeneratedAt time.Time `json:"generatedAt"`
}

// Alert is raised for every activation of moderate severity or worse.
type Alert struct {
	Severity Severity `json:"severity"`
	RuleID   string   `json:"ruleId"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// CategorySummary is one row of the per-category summary table.
type CategorySummary struct {
	Category        Category `json:"category"`
	Label           string   `json:"label"`
	Activations     int      `json:"activations"`
	RiskImpact      int      `json:"riskImpact"`
	Relief          int      `json:"relief"`
	AggregateImpact int      `json:"aggregateImpact"`
	Level           Level    `json:"level"`
}

// MitigationStep is one prioritized entry of a mitigation plan.
type MitigationStep struct {
	Priority int      `json:"priority"`
	Factor   string   `json:"factor"`
	Severity Severity `json:"severity,omitempty"`
	Actions  []string `json:"actions"`
}

// Decision source used when no meta-rule matched.
const DecidedByScoreBand = "score-band"

// EvaluationResult is the value returned for one evaluation. The engine
// keeps no reference to it.
type EvaluationResult struct {
	SchemaVersion  string `json:"schemaVersion"`
	CatalogVersion string `json:"catalogVersion"`

	FinalTier      Tier   `json:"finalTier"`
	Score          int    `json:"score"`
	Recommendation string `json:"recommendation"`

	// DecidedBy is the matching meta-rule ID, or DecidedByScoreBand.
	DecidedBy string `json:"decidedBy"`

	TotalImpact      int                          `json:"totalImpact"`
	Activations      []Activation                 `json:"activations"`
	Trace            []TraceEntry                 `json:"trace"`
	Alerts           []Alert                      `json:"alerts"`
	CriticalFactors  []string                     `json:"criticalFactors"`
	CategoryOutcomes map[Category]CategoryOutcome `json:"categoryOutcomes"`
	CategorySummary  []CategorySummary            `json:"categorySummary"`
	MitigationPlan   []MitigationStep             `json:"mitigationPlan"`

	RulesEvaluated      int       `json:"rulesEvaluated"`
	DefaultedIndicators []string  `json:"defaultedIndicators,omitempty"`
	GeneratedAt         time.Time `json:"generatedAt"`
}

// Outcome returns the outcome for a category, LOW with no activations if absent.
func (r EvaluationResult) Outcome(c Category) CategoryOutcome {
	if o, ok := r.CategoryOutcomes[c]; ok {
		return o
	}
	return CategoryOutcome{Category: c, Level: LevelLow}
}

// AlertCounts returns the number of alerts per severity.
func (r EvaluationResult) AlertCounts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, a := range r.Alerts {
		counts[a.Severity]++
	}
	return counts
}

// Plain returns the result as nested maps, slices and primitives so that
// report and UI layers never need engine types.
func (r EvaluationResult) Plain() map[string]any {
	b, err := json.Marshal(r)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// SupplierRequest is one supplier submitted for evaluation.
type SupplierRequest struct {
	SupplierID string         `json:"supplierId" yaml:"supplierId"`
	Name       string         `json:"name" yaml:"name"`
	Indicators map[string]any `json:"indicators" yaml:"indicators"`
}

// EvaluationRecord is an audited evaluation: the request plus its result.
type EvaluationRecord struct {
	ID           string           `json:"id"`
	SupplierID   string           `json:"supplierId"`
	SupplierName string           `json:"supplierName"`
	TraceID      string           `json:"traceId,omitempty"`
	Indicators   map[string]any   `json:"indicators"`
	Result       EvaluationResult `json:"result"`
	DurationMs   int64            `json:"durationMs"`
	CreatedAt    time.Time        `json:"createdAt"`
}
