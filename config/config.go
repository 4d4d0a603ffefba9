// Package config resolves process-level settings from the environment and
// decodes rule/filter/portfolio YAML files into typed structs rather than
// passing untyped maps through the pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"backtestcore/logging"
)

// LoadDotEnv loads a .env file if present; a missing file is not an error,
// matching local-development conventions where .env is optional.
func LoadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		logging.Default().Warnf("failed to load %s: %v", path, err)
	}
}

// ResultsDatabase returns the InfluxDB-equivalent results database name,
// selected by INFLUXDB3_ENVIRONMENT.
func ResultsDatabase() string {
	if strings.EqualFold(os.Getenv("INFLUXDB3_ENVIRONMENT"), "prod") {
		return "backtest"
	}
	return "backtest-dev"
}

// ResolvePath resolves a bare config name (e.g. "my_strategy") against a
// strategies directory, or returns the path unchanged if it already looks
// like a file path (has a yaml/yml suffix or a path separator).
func ResolvePath(strategiesDir, name string) string {
	ext := filepath.Ext(name)
	if ext == ".yaml" || ext == ".yml" || strings.ContainsAny(name, "/\\") {
		return name
	}
	return filepath.Join(strategiesDir, name+".yaml")
}

// DecodeYAMLFile reads path and decodes it into dst, which must be a
// pointer. Errors are wrapped with the file path for easier diagnosis.
func DecodeYAMLFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
