package portfolio

import (
	"fmt"

	"backtestcore/config"
)

type fileConfig struct {
	Rules []map[string]map[string]any `yaml:"rules"`
}

// LoadConfig builds a Pipeline from a YAML file whose rules: list holds
// single-key maps of rule-type name to parameters.
func LoadConfig(path string) (*Pipeline, error) {
	var fc fileConfig
	if err := config.DecodeYAMLFile(path, &fc); err != nil {
		return nil, fmt.Errorf("load portfolio config %s: %w", path, err)
	}

	var rules []Rule
	for _, entry := range fc.Rules {
		for ruleType, params := range entry {
			r, err := build(ruleType, params)
			if err != nil {
				return nil, fmt.Errorf("build portfolio rule from %s: %w", path, err)
			}
			rules = append(rules, r)
		}
	}
	return NewPipeline(rules), nil
}

func build(ruleType string, params map[string]any) (Rule, error) {
	switch ruleType {
	case "max_capital_deployed":
		pct, _ := toFloat(params["max_deployed_pct"])
		return MaxCapitalDeployedRule{MaxDeployedPct: pct}, nil
	case "fractional_position_size":
		frac, _ := toFloat(params["fraction_of_equity"])
		return FractionalPositionSizeRule{FractionOfEquity: frac}, nil
	default:
		return nil, fmt.Errorf("unknown portfolio rule type %q", ruleType)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
