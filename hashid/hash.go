// Package hashid computes the deterministic 16-hex-character configuration
// fingerprint that labels every backtest run for deduplication.
package hashid

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Length is the number of hex characters kept from the SHA-256 digest.
const Length = 16

// Config is the canonical set of inputs that participate in the hash.
// Tickers, start/end dates, and the results database are deliberately
// excluded: two runs over different date ranges or ticker sets but an
// otherwise identical configuration must hash identically.
//
// Optional sections use pointers/omitempty so that an absent section is
// omitted entirely from the canonical encoding rather than serialized as
// null — a config with no filters must hash differently from one with an
// explicit empty filter list.
type Config struct {
	StrategyName       string          `json:"strategy_name"`
	StrategyParams     map[string]any  `json:"strategy_params,omitempty"`
	ExecutionConfig    ExecutionCfg    `json:"execution_config"`
	StepFrequency      string          `json:"step_frequency"`
	CapitalPerTrade    float64         `json:"capital_per_trade"`
	RiskFreeRate       float64         `json:"risk_free_rate"`
	WalkForward        map[string]any  `json:"walk_forward,omitempty"`
	PositionManagerCfg *map[string]any `json:"position_manager_config,omitempty"`
	FilterCfg          *map[string]any `json:"filter_config,omitempty"`
}

// ExecutionCfg mirrors the execution-simulator parameters that are part of
// the hash's input surface.
type ExecutionCfg struct {
	SlippageBps       float64 `json:"slippage_bps"`
	CommissionPerShare float64 `json:"commission_per_share"`
	UseLimitOrders    bool    `json:"use_limit_orders"`
	FillDelayMinutes  float64 `json:"fill_delay_minutes"`
}

// Compute canonicalizes cfg (recursively sorting map keys via the stable
// encoding/json map-key ordering) and returns the lowercase 16-hex-char
// SHA-256 prefix.
func Compute(cfg Config) (string, error) {
	canonical, err := canonicalize(cfg)
	if err != nil {
		return "", fmt.Errorf("canonicalize hash config: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:Length], nil
}

// canonicalize serializes cfg through a decode/re-encode round trip so that
// every nested map[string]any is re-marshaled with sorted keys; Go's
// encoding/json already emits map keys in sorted order, and round-tripping
// through map[string]any normalizes nested maps (including ones built by
// callers in arbitrary key order) onto the same guarantee.
func canonicalize(cfg Config) ([]byte, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
