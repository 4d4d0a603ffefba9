// Package strategy provides built-in strategy implementations the CLI
// entrypoints can drive directly, following the processor.Strategy contract.
package strategy

import (
	"fmt"

	"backtestcore/ohlcvcache"
	"backtestcore/positionmanager"
)

// SMACross emits a buy signal when the fast SMA crosses above the slow SMA,
// and a sell signal on the reverse cross.
type SMACross struct {
	FastWindow int
	SlowWindow int
}

// NewSMACross builds an SMACross strategy from strategy_params ("fast",
// "slow"), defaulting to 10/20.
func NewSMACross(params map[string]any) SMACross {
	s := SMACross{FastWindow: 10, SlowWindow: 20}
	if v, ok := toInt(params["fast"]); ok {
		s.FastWindow = v
	}
	if v, ok := toInt(params["slow"]); ok {
		s.SlowWindow = v
	}
	return s
}

// Name implements processor.Strategy.
func (s SMACross) Name() string { return "sma_cross" }

// GenerateSignals implements processor.Strategy.
func (s SMACross) GenerateSignals(ticker string, frame ohlcvcache.Frame, _ map[string]any) ([]positionmanager.Signal, error) {
	if s.FastWindow <= 0 || s.SlowWindow <= 0 {
		return nil, fmt.Errorf("sma_cross: fast/slow windows must be positive, got %d/%d", s.FastWindow, s.SlowWindow)
	}
	if s.FastWindow >= s.SlowWindow {
		return nil, fmt.Errorf("sma_cross: fast window %d must be less than slow window %d", s.FastWindow, s.SlowWindow)
	}

	var signals []positionmanager.Signal
	var prevFast, prevSlow float64
	havePrev := false

	for i := range frame.Bars {
		fast, fastOK := sma(frame, i, s.FastWindow)
		slow, slowOK := sma(frame, i, s.SlowWindow)
		if !fastOK || !slowOK {
			continue
		}

		if havePrev {
			bar := frame.Bars[i]
			crossedUp := prevFast <= prevSlow && fast > slow
			crossedDown := prevFast >= prevSlow && fast < slow
			switch {
			case crossedUp:
				signals = append(signals, positionmanager.Signal{
					Ticker: ticker, Time: bar.Time.Unix(), Direction: "buy",
					Fields: map[string]float64{"price": bar.Close, "close": bar.Close, "fast_sma": fast, "slow_sma": slow},
				})
			case crossedDown:
				signals = append(signals, positionmanager.Signal{
					Ticker: ticker, Time: bar.Time.Unix(), Direction: "sell",
					Fields: map[string]float64{"price": bar.Close, "close": bar.Close, "fast_sma": fast, "slow_sma": slow},
				})
			}
		}

		prevFast, prevSlow, havePrev = fast, slow, true
	}

	return signals, nil
}

// sma computes the simple moving average of Close over the window bars
// ending at index i (inclusive).
func sma(frame ohlcvcache.Frame, i, window int) (float64, bool) {
	if i+1 < window {
		return 0, false
	}
	var sum float64
	for j := i - window + 1; j <= i; j++ {
		sum += frame.Bars[j].Close
	}
	return sum / float64(window), true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
