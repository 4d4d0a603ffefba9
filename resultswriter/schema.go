// Package resultswriter validates and publishes trade/metric/study output
// to the queue broker in the column-oriented shape downstream consumers
// expect.
package resultswriter

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Payload is the common envelope shared by trades, metrics, and studies
// payloads.
type Payload struct {
	Ticker         string            `json:"ticker" validate:"required"`
	StrategyName   string            `json:"strategy_name" validate:"required"`
	BacktestID     string            `json:"backtest_id"`
	HashID         string            `json:"hash_id"`
	StrategyParams map[string]any    `json:"strategy_params,omitempty"`
	Database       string            `json:"database,omitempty"`
	PortfolioStage string            `json:"portfolio_stage,omitempty"`
	Datetime       []int64           `json:"datetime" validate:"required,min=1"`
	Columns        map[string][]any  `json:"columns"`
}

// Validate checks Payload against the schema: ticker/strategy_name
// non-empty, datetime non-empty and non-negative, every column the same
// length as datetime, and strategy-param keys non-empty.
func (p Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	for i, v := range p.Datetime {
		if v < 0 {
			return fmt.Errorf("datetime[%d] must be non-negative, got %d", i, v)
		}
	}
	for name, col := range p.Columns {
		if len(col) != len(p.Datetime) {
			return fmt.Errorf("column %q has length %d, expected %d (datetime length)", name, len(col), len(p.Datetime))
		}
	}
	for key := range p.StrategyParams {
		if key == "" {
			return fmt.Errorf("strategy_params contains an empty key")
		}
	}
	return nil
}
