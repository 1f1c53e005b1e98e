package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
)

type definitionFile struct {
	Rules []definitionEntry `yaml:"rules"`
}

type definitionEntry struct {
	ID            string          `yaml:"id"`
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description"`
	Category      domain.Category `yaml:"category"`
	Severity      domain.Severity `yaml:"severity"`
	Impact        int             `yaml:"impact"`
	Factor        string          `yaml:"factor"`
	Expression    string          `yaml:"expression"`
	Justification string          `yaml:"justification"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// LoadDefinitionsFile reads CEL rule definitions from a YAML rules file.
func LoadDefinitionsFile(path string) ([]*domain.RuleDefinition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseDefinitions(b)
}

// ParseDefinitions decodes a YAML rules document:
//
//	rules:
//	  - id: RX-100
//	    name: Single-source dependency
//	    category: operational
//	    severity: high
//	    impact: 15
//	    expression: production_capacity < 30.0 && years_in_market < 5.0
//	    justification: '"capacity at " + string(production_capacity) + "%"'
func ParseDefinitions(b []byte) ([]*domain.RuleDefinition, error) {
	var file definitionFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	defs := make([]*domain.RuleDefinition, 0, len(file.Rules))
	for i, e := range file.Rules {
		if e.ID == "" {
			return nil, fmt.Errorf("rules file entry #%d has no id", i+1)
		}
		defs = append(defs, &domain.RuleDefinition{
			ID:            e.ID,
			Name:          e.Name,
			Description:   e.Description,
			Category:      e.Category,
			Severity:      e.Severity,
			Impact:        e.Impact,
			Factor:        e.Factor,
			Expression:    e.Expression,
			Justification: e.Justification,
			Enabled:       e.Enabled == nil || *e.Enabled,
		})
	}
	return defs, nil
}
