package config

import (
	"errors"
	"fmt"

	"furusatoReco/domain"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadModules reads judgment module definitions from a YAML file:
//
//	modules:
//	  - name: price_fit
//	    enabled: true
//	    weight: 0.15
//	    priority: 3
func LoadModules(path string) ([]domain.JudgmentModule, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load modules file %s: %w", path, err)
	}

	var modules []domain.JudgmentModule
	if err := k.Unmarshal("modules", &modules); err != nil {
		return nil, fmt.Errorf("decode modules: %w", err)
	}

	seen := make(map[string]bool, len(modules))
	for _, m := range modules {
		if m.Name == "" {
			return nil, errors.New("module without name")
		}
		if m.Weight < 0 {
			return nil, fmt.Errorf("module %s: negative weight", m.Name)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("module %s defined twice", m.Name)
		}
		seen[m.Name] = true
	}

	return modules, nil
}
