package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// supplierFile is one supplier or a "suppliers" list. JSON files parse as YAML.
type supplierFile struct {
	domain.SupplierRequest `yaml:",inline"`
	Suppliers              []domain.SupplierRequest `yaml:"suppliers"`
}

// loadSuppliers reads every file in order. A single supplier without an id
// is named after its file.
func loadSuppliers(paths []string) ([]domain.SupplierRequest, error) {
	var out []domain.SupplierRequest
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var f supplierFile
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if len(f.Suppliers) > 0 {
			for i, s := range f.Suppliers {
				if s.SupplierID == "" {
					s.SupplierID = fmt.Sprintf("%s#%d", fileStem(path), i+1)
				}
				out = append(out, s)
			}
			continue
		}

		if f.Indicators == nil {
			return nil, fmt.Errorf("%s: no indicators or suppliers found", path)
		}
		s := f.SupplierRequest
		if s.SupplierID == "" {
			s.SupplierID = fileStem(path)
		}
		out = append(out, s)
	}
	return out, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
