package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Compiler turns CEL rule definitions into catalog rules. Every indicator
// of the schema is declared as a typed CEL variable.
type Compiler struct {
	env    *cel.Env
	schema *domain.Schema
}

// NewCompiler creates a compiler for the given schema.
func NewCompiler(schema *domain.Schema) (*Compiler, error) {
	if schema == nil {
		schema = domain.SupplierSchema()
	}

	opts := []cel.EnvOption{cel.CrossTypeNumericComparisons(true)}
	for _, ind := range schema.Indicators() {
		opts = append(opts, cel.Variable(ind.Name, celType(ind.Kind)))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Compiler{env: env, schema: schema}, nil
}

func celType(k domain.Kind) *cel.Type {
	switch k {
	case domain.KindNumber:
		return cel.DoubleType
	case domain.KindCount:
		return cel.IntType
	case domain.KindFlag:
		return cel.BoolType
	case domain.KindText:
		return cel.StringType
	}
	return cel.DynType
}

// Validate compiles a definition without producing a rule.
func (c *Compiler) Validate(def *domain.RuleDefinition) error {
	_, err := c.Compile(def)
	return err
}

// Compile produces a catalog rule from a definition.
func (c *Compiler) Compile(def *domain.RuleDefinition) (domain.Rule, error) {
	if def == nil {
		return domain.Rule{}, fmt.Errorf("rule definition is required")
	}
	if def.ID == "" {
		return domain.Rule{}, fmt.Errorf("rule definition has no id")
	}
	if !def.Category.Valid() {
		return domain.Rule{}, fmt.Errorf("rule %s: unknown category %q", def.ID, def.Category)
	}
	if !def.Severity.Valid() {
		return domain.Rule{}, fmt.Errorf("rule %s: unknown severity %q", def.ID, def.Severity)
	}
	if strings.TrimSpace(def.Expression) == "" {
		return domain.Rule{}, fmt.Errorf("rule %s: expression is required", def.ID)
	}

	when, err := c.program(def.ID, def.Expression, cel.BoolType)
	if err != nil {
		return domain.Rule{}, err
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}

	rule := domain.Rule{
		ID:          def.ID,
		Name:        name,
		Description: def.Description,
		Category:    def.Category,
		Impact:      def.Impact,
		Severity:    def.Severity,
		Factor:      def.Factor,
		Source:      domain.SourceDefinition,
		Expression:  def.Expression,
		Predicate:   predicate(when),
	}

	if def.Justification != "" {
		why, err := c.program(def.ID, def.Justification, cel.StringType)
		if err != nil {
			return domain.Rule{}, err
		}
		rule.Justify = justifier(why)
	} else {
		rule.Justify = citeReferenced(name, def.Expression, c.referenced(def.Expression))
	}

	return rule, nil
}

func (c *Compiler) program(id, expr string, want *cel.Type) (cel.Program, error) {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", id, issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(want) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("rule %s: expression must return %s, got %s", id, want, out)
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", id, err)
	}
	return program, nil
}

func predicate(prg cel.Program) domain.Predicate {
	return func(f domain.FactSet) (bool, error) {
		out, _, err := prg.Eval(f.Values())
		if err != nil {
			return false, fmt.Errorf("evaluation error: %w", err)
		}
		switch v := out.(type) {
		case types.Bool:
			return bool(v), nil
		default:
			return false, fmt.Errorf("expression returned %v, want bool", out.Type())
		}
	}
}

func justifier(prg cel.Program) domain.Justifier {
	return func(f domain.FactSet) (string, error) {
		out, _, err := prg.Eval(f.Values())
		if err != nil {
			return "", fmt.Errorf("evaluation error: %w", err)
		}
		switch v := out.(type) {
		case types.String:
			return string(v), nil
		default:
			return "", fmt.Errorf("justification returned %v, want string", out.Type())
		}
	}
}

// referenced returns the schema indicators named in expr, in schema order.
func (c *Compiler) referenced(expr string) []string {
	var names []string
	for _, ind := range c.schema.Indicators() {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(ind.Name) + `\b`)
		if re.MatchString(expr) {
			names = append(names, ind.Name)
		}
	}
	return names
}

// citeReferenced is the justification of definitions that declare none:
// the rule name followed by the values of the indicators it reads.
func citeReferenced(name, expr string, names []string) domain.Justifier {
	return func(f domain.FactSet) (string, error) {
		if len(names) == 0 {
			return fmt.Sprintf("%s: %s", name, expr), nil
		}
		parts := make([]string, 0, len(names))
		for _, n := range names {
			v, _ := f.Value(n)
			parts = append(parts, fmt.Sprintf("%s=%v", n, v))
		}
		return fmt.Sprintf("%s (%s)", name, strings.Join(parts, ", ")), nil
	}
}

// Extend returns a copy of spec with the enabled definitions compiled and
// appended after the existing rules. Compile failures are reported
// together as a *domain.CatalogIntegrityError.
func Extend(spec Spec, defs []*domain.RuleDefinition) (Spec, error) {
	compiler, err := NewCompiler(spec.Schema)
	if err != nil {
		return Spec{}, err
	}

	out := spec
	out.Rules = make([]domain.Rule, len(spec.Rules), len(spec.Rules)+len(defs))
	copy(out.Rules, spec.Rules)

	var problems []string
	h := sha256.New()
	added := 0
	for _, def := range defs {
		if def == nil || !def.Enabled {
			continue
		}
		rule, err := compiler.Compile(def)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		fmt.Fprintf(h, "%s|%s|%s|%d|%s|%s\n", def.ID, def.Category, def.Severity, def.Impact, def.Expression, def.Justification)
		out.Rules = append(out.Rules, rule)
		added++
	}

	if len(problems) > 0 {
		return Spec{}, &domain.CatalogIntegrityError{Problems: problems}
	}
	if added > 0 {
		out.Version = fmt.Sprintf("%s+%s", spec.Version, hex.EncodeToString(h.Sum(nil))[:8])
	}
	return out, nil
}

// LoadCatalog builds a catalog from base extended with definitions.
func LoadCatalog(base Spec, defs []*domain.RuleDefinition) (*Catalog, error) {
	spec, err := Extend(base, defs)
	if err != nil {
		return nil, err
	}
	return NewCatalog(spec)
}
