// Package positionmanager implements the central per-ticker state machine
// that turns a raw signal stream plus OHLCV bars into a time-ordered stream
// of execution intents, synthesizing its own exits and scale-ins between
// strategy signals.
package positionmanager

import (
	"backtestcore/ohlcvcache"
	"backtestcore/positionrules"
)

// Signal is a strategy-emitted trading signal, ahead of any PM state.
type Signal struct {
	Ticker    string
	Time      int64 // unix seconds, UTC
	Direction string // "buy" or "sell"
	Fields    map[string]float64
}

// Intent is one execution-worthy event the PM has decided to act on.
type Intent struct {
	Ticker      string
	Time        int64
	Action      string // "open", "close", "scale_in", "scale_out"
	Side        positionrules.Side
	Price       float64
	Fraction    float64 // exit intents only; ignored for entries
	Reason      string
	PMGenerated bool
	PMScaleIn   bool
}

func entrySideForDirection(direction string) positionrules.Side {
	switch direction {
	case "buy":
		return positionrules.SideLong
	case "sell":
		return positionrules.SideShort
	default:
		return positionrules.SideFlat
	}
}

func entryDirectionForSide(side positionrules.Side) string {
	switch side {
	case positionrules.SideLong:
		return "buy"
	case positionrules.SideShort:
		return "sell"
	default:
		return ""
	}
}

func exitDirectionForSide(side positionrules.Side) string {
	switch side {
	case positionrules.SideLong:
		return "sell"
	case positionrules.SideShort:
		return "buy"
	default:
		return ""
	}
}

// Run processes signals against frame's bars in strict time order and
// returns the merged execution-intent stream for ticker. If frame carries
// no bars, it falls back to RunSignalsOnly.
func Run(ticker string, signals []Signal, frame ohlcvcache.Frame, pipeline *positionrules.Pipeline) []Intent {
	if frame.Empty() {
		return RunSignalsOnly(ticker, signals, pipeline)
	}

	var intents []Intent
	position := positionrules.PositionState{}
	sigIdx := 0
	ohlcvByTicker := map[string]ohlcvcache.Frame{ticker: frame}

	for _, bar := range frame.Bars {
		t := bar.Time.Unix()

		// Step 1: drain strategy signals at or before this bar.
		for sigIdx < len(signals) && signals[sigIdx].Time <= t {
			s := signals[sigIdx]
			sigIdx++
			intent, newPos, ok := applySignal(ticker, s, position, ohlcvByTicker, pipeline)
			if ok {
				intents = append(intents, intent)
				position = newPos
			}
		}

		// Step 2: PM-synthesized exit at this bar's close.
		if position.Open() {
			synthetic := Signal{
				Ticker:    ticker,
				Time:      t,
				Direction: exitDirectionForSide(position.Side),
				Fields:    map[string]float64{"price": bar.Close},
			}
			if intent, newPos, ok := applyExit(ticker, synthetic, position, ohlcvByTicker, pipeline, true); ok {
				intents = append(intents, intent)
				position = newPos
			}
		}

		// Step 3: PM-synthesized scale-in.
		if position.Open() && pipeline.AllowScaleIn() {
			synthetic := Signal{
				Ticker:    ticker,
				Time:      t,
				Direction: entryDirectionForSide(position.Side),
				Fields:    map[string]float64{"price": bar.Close},
			}
			ctx := positionrules.Context{
				Signal:        toRuleSignal(synthetic),
				Position:      position,
				OHLCVByTicker: ohlcvByTicker,
			}
			if pipeline.DecideEntry(ctx) {
				position.Size += 1.0
				intents = append(intents, Intent{
					Ticker: ticker, Time: t, Action: "scale_in", Side: position.Side,
					Price: bar.Close, PMGenerated: true, PMScaleIn: true,
				})
			}
		}
	}

	return intents
}

// RunSignalsOnly processes signals without any OHLCV-backed synthesis —
// used when a ticker's bars are unavailable. Only the stateful entry/exit
// filter runs; no PM-synthesized exits or scale-ins are produced.
func RunSignalsOnly(ticker string, signals []Signal, pipeline *positionrules.Pipeline) []Intent {
	var intents []Intent
	position := positionrules.PositionState{}

	for _, s := range signals {
		intent, newPos, ok := applySignal(ticker, s, position, nil, pipeline)
		if ok {
			intents = append(intents, intent)
			position = newPos
		}
	}
	return intents
}

func applySignal(
	ticker string, s Signal, position positionrules.PositionState,
	ohlcvByTicker map[string]ohlcvcache.Frame, pipeline *positionrules.Pipeline,
) (Intent, positionrules.PositionState, bool) {
	if !position.Open() {
		targetSide := entrySideForDirection(s.Direction)
		if targetSide == positionrules.SideFlat {
			return Intent{}, position, false
		}
		ctx := positionrules.Context{Signal: toRuleSignal(s), Position: position, OHLCVByTicker: ohlcvByTicker}
		if !pipeline.DecideEntry(ctx) {
			return Intent{}, position, false
		}
		price, ok := s.Fields["price"]
		if !ok {
			price = 0
		}
		position.Size = 1.0
		position.Side = targetSide
		position.EntryPrice = price
		return Intent{Ticker: ticker, Time: s.Time, Action: "open", Side: targetSide, Price: price}, position, true
	}

	isExitDirection := s.Direction == exitDirectionForSide(position.Side)
	if !isExitDirection {
		return Intent{}, position, false
	}
	return applyExit(ticker, s, position, ohlcvByTicker, pipeline, false)
}

func applyExit(
	ticker string, s Signal, position positionrules.PositionState,
	ohlcvByTicker map[string]ohlcvcache.Frame, pipeline *positionrules.Pipeline, pmGenerated bool,
) (Intent, positionrules.PositionState, bool) {
	ctx := positionrules.Context{Signal: toRuleSignal(s), Position: position, OHLCVByTicker: ohlcvByTicker}
	frac, reason := pipeline.DecideExit(ctx)
	if !pmGenerated && frac <= 0 {
		// A strategy exit signal that no rule sizes closes the whole position.
		frac = 1.0
	}
	if frac <= 0 {
		return Intent{}, position, false
	}

	position.Size -= frac
	if position.Size < 0 {
		position.Size = 0
	}

	action := "scale_out"
	closedOut := position.Size == 0
	if closedOut {
		action = "close"
	}

	side := position.Side
	price, _ := s.Fields["price"]

	reasonStr := ""
	if reason != nil {
		reasonStr = *reason
	}

	if closedOut {
		position.Side = positionrules.SideFlat
		position.EntryPrice = 0
		pipeline.ResetForTicker(ticker)
	}

	return Intent{
		Ticker: ticker, Time: s.Time, Action: action, Side: side, Price: price,
		Fraction: frac, Reason: reasonStr, PMGenerated: pmGenerated,
	}, position, true
}

func toRuleSignal(s Signal) positionrules.Signal {
	return positionrules.Signal{Ticker: s.Ticker, Time: s.Time, Direction: s.Direction, Fields: s.Fields}
}
