package positionrules

import (
	"fmt"

	"backtestcore/config"
)

type fileConfig struct {
	Rules []map[string]map[string]any `yaml:"rules"`
}

// LoadConfig builds a Pipeline from a YAML file whose rules: list holds
// single-key maps of rule-type name to parameters, mirroring the filter
// pipeline's config shape.
func LoadConfig(path string) (*Pipeline, error) {
	var fc fileConfig
	if err := config.DecodeYAMLFile(path, &fc); err != nil {
		return nil, fmt.Errorf("load position rule config %s: %w", path, err)
	}

	var rules []Rule
	var oneShot []bool
	for _, entry := range fc.Rules {
		for ruleType, params := range entry {
			r, os, err := Build(ruleType, params)
			if err != nil {
				return nil, fmt.Errorf("build rule from %s: %w", path, err)
			}
			rules = append(rules, r)
			oneShot = append(oneShot, os)
		}
	}
	return NewPipeline(rules, oneShot), nil
}
