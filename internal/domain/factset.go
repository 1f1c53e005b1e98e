package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// FactSet is an immutable, validated snapshot of one supplier's indicators.
// Every indicator declared by the schema is present, either as supplied or
// as its declared default.
type FactSet struct {
	schema    *Schema
	values    map[string]any
	defaulted []string
}

// NewFactSet validates raw against schema. Unknown keys are ignored and nil
// values count as absent. All missing required indicators and all type
// mismatches are reported together in a *ValidationError.
func NewFactSet(schema *Schema, raw map[string]any) (FactSet, error) {
	if schema == nil {
		schema = SupplierSchema()
	}

	values := make(map[string]any, len(schema.indicators))
	var defaulted []string
	var problems []FieldError

	for _, ind := range schema.indicators {
		v, ok := raw[ind.Name]
		if !ok || v == nil {
			if ind.Required {
				problems = append(problems, FieldError{
					Field:    ind.Name,
					Reason:   ReasonMissing,
					Expected: ind.Kind,
				})
				continue
			}
			values[ind.Name] = ind.Default
			defaulted = append(defaulted, ind.Name)
			continue
		}

		typed, ok := coerce(ind.Kind, v)
		if !ok {
			problems = append(problems, FieldError{
				Field:    ind.Name,
				Reason:   ReasonType,
				Expected: ind.Kind,
				Got:      fmt.Sprintf("%T", v),
			})
			continue
		}
		values[ind.Name] = typed
	}

	if len(problems) > 0 {
		sort.Slice(problems, func(i, j int) bool { return problems[i].Field < problems[j].Field })
		return FactSet{}, &ValidationError{Fields: problems}
	}

	return FactSet{schema: schema, values: values, defaulted: defaulted}, nil
}

// coerce converts a raw value to the Go type backing kind.
func coerce(kind Kind, v any) (any, bool) {
	switch kind {
	case KindNumber:
		return toFloat(v)
	case KindCount:
		return toCount(v)
	case KindFlag:
		b, ok := v.(bool)
		return b, ok
	case KindText:
		s, ok := v.(string)
		return s, ok
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toCount(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return integral(f)
	}
	if f, ok := toFloat(v); ok {
		return integral(f)
	}
	return 0, false
}

// integral accepts floats such as 3.0 that decoders produce for whole numbers.
func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// SchemaVersion returns the version of the schema the facts were validated against.
func (f FactSet) SchemaVersion() string {
	if f.schema == nil {
		return ""
	}
	return f.schema.version
}

// Schema returns the schema the facts were validated against.
func (f FactSet) Schema() *Schema {
	return f.schema
}

// Has reports whether name is a declared indicator of this fact set.
func (f FactSet) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Value returns the typed value for name.
func (f FactSet) Value(name string) (any, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Number returns a number or count indicator as float64.
// It panics if name is not a declared numeric indicator; the rule
// evaluator contains such panics to the offending rule.
func (f FactSet) Number(name string) float64 {
	switch v := f.values[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	panic(fmt.Sprintf("fact %q is not a numeric indicator", name))
}

// Count returns a count indicator. It panics if name is not a declared count.
func (f FactSet) Count(name string) int64 {
	if v, ok := f.values[name].(int64); ok {
		return v
	}
	panic(fmt.Sprintf("fact %q is not a count indicator", name))
}

// Flag returns a flag indicator. It panics if name is not a declared flag.
func (f FactSet) Flag(name string) bool {
	if v, ok := f.values[name].(bool); ok {
		return v
	}
	panic(fmt.Sprintf("fact %q is not a flag indicator", name))
}

// Attested returns a flag indicator only when the caller supplied it.
// ok is false when the flag was absent and took its default, so rules
// can tell "not assessed" apart from an explicit "no".
func (f FactSet) Attested(name string) (value, ok bool) {
	v := f.Flag(name)
	for _, d := range f.defaulted {
		if d == name {
			return false, false
		}
	}
	return v, true
}

// Text returns a text indicator. It panics if name is not a declared text indicator.
func (f FactSet) Text(name string) string {
	if v, ok := f.values[name].(string); ok {
		return v
	}
	panic(fmt.Sprintf("fact %q is not a text indicator", name))
}

// Defaulted returns the indicators that were absent and took their declared default.
func (f FactSet) Defaulted() []string {
	out := make([]string, len(f.defaulted))
	copy(out, f.defaulted)
	return out
}

// Values returns a fresh copy of every indicator value, keyed by name.
func (f FactSet) Values() map[string]any {
	out := make(map[string]any, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}
