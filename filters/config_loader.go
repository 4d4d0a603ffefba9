package filters

import (
	"fmt"

	"backtestcore/config"
)

// fileConfig is the YAML shape of a filters: config file.
type fileConfig struct {
	Filters []map[string]map[string]any `yaml:"filters"`
}

// LoadConfig builds a Pipeline from a single YAML file. Each entry under
// filters: is a single-key map of filter-type name to its parameters.
func LoadConfig(path string) (*Pipeline, error) {
	var fc fileConfig
	if err := config.DecodeYAMLFile(path, &fc); err != nil {
		return nil, fmt.Errorf("load filter config %s: %w", path, err)
	}
	fs, err := buildFilters(fc.Filters)
	if err != nil {
		return nil, fmt.Errorf("build filters from %s: %w", path, err)
	}
	return NewPipeline(fs), nil
}

// LoadConfigs loads several config files and concatenates their filters
// into a single pipeline, preserving file order then in-file order.
func LoadConfigs(paths []string) (*Pipeline, error) {
	var pipelines []*Pipeline
	for _, p := range paths {
		pl, err := LoadConfig(p)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, pl)
	}
	return Concat(pipelines...), nil
}

func buildFilters(entries []map[string]map[string]any) ([]Filter, error) {
	var out []Filter
	for _, entry := range entries {
		for filterType, params := range entry {
			f, err := Build(filterType, params)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
	}
	return out, nil
}
