// Package positionrules implements the entry/exit veto-and-scale rule
// pipeline that sits between the filtered signal stream and the position
// manager.
package positionrules

import "backtestcore/ohlcvcache"

// Side is a position's directional sense.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
	SideFlat  Side = ""
)

// Signal is the minimal signal shape a position rule inspects.
type Signal struct {
	Ticker    string
	Time      int64 // unix seconds, UTC
	Direction string // "buy" or "sell"
	Fields    map[string]float64
}

// PositionState describes the open position (if any) for a ticker at the
// time a rule is evaluated. Size is zero for a flat position.
type PositionState struct {
	Size       float64
	Side       Side
	EntryPrice float64
}

// Open reports whether the position carries any size.
func (p PositionState) Open() bool { return p.Side != SideFlat && p.Size != 0 }

// Decision is a rule's verdict. AllowEntry is nil when the rule has no
// opinion on an entry signal; ExitFraction is nil when the rule has no
// opinion on an exit signal. Reason explains a non-nil ExitFraction.
type Decision struct {
	AllowEntry   *bool
	ExitFraction *float64
	Reason       string
}

// Context bundles a signal, the current position, and the OHLCV history
// available to rules that compute anchor prices from it.
type Context struct {
	Signal        Signal
	Position      PositionState
	OHLCVByTicker map[string]ohlcvcache.Frame
}

// GetTickerOHLCV returns the OHLCV frame for the context's signal ticker.
func (c Context) GetTickerOHLCV() (ohlcvcache.Frame, bool) {
	f, ok := c.OHLCVByTicker[c.Signal.Ticker]
	return f, ok
}

// Rule is the interface every entry/exit rule implements.
type Rule interface {
	Evaluate(ctx Context) Decision
}

// AnchorConfig parametrizes an anchor-price computation. It has no
// equivalent standalone definition upstream — its shape is inferred from
// how take-profit and stop-loss rules consume it: an anchor type/field
// pair, an optional lookback window, and whether the rule that owns it
// fires only once per open-position lifecycle.
type AnchorConfig struct {
	AnchorType   string // "entry_price", "rolling_max", "rolling_min"
	AnchorField  string // "close", "high", "low", "open"
	LookbackBars *int
	OneShot      bool
}

func barField(bar ohlcvcache.Bar, field string) (float64, bool) {
	switch field {
	case "open":
		return bar.Open, true
	case "high":
		return bar.High, true
	case "low":
		return bar.Low, true
	case "close":
		return bar.Close, true
	default:
		return 0, false
	}
}

// computeAnchorPrice resolves the reference price a take-profit/stop-loss
// rule measures distance from. Returns false if no anchor can be
// determined (missing ticker data, missing field, or an empty bar slice).
func computeAnchorPrice(ctx Context, anchorType, anchorField string, lookbackBars *int) (float64, bool) {
	switch anchorType {
	case "entry_price":
		if !ctx.Position.Open() {
			return 0, false
		}
		return ctx.Position.EntryPrice, true
	case "rolling_max", "rolling_min":
		frame, ok := ctx.GetTickerOHLCV()
		if !ok {
			return 0, false
		}
		var values []float64
		for _, b := range frame.Bars {
			if b.Time.Unix() > ctx.Signal.Time {
				break
			}
			v, fieldOK := barField(b, anchorField)
			if !fieldOK {
				return 0, false
			}
			values = append(values, v)
		}
		if lookbackBars != nil && *lookbackBars > 0 && len(values) > *lookbackBars {
			values = values[len(values)-*lookbackBars:]
		}
		if len(values) == 0 {
			return 0, false
		}
		result := values[0]
		for _, v := range values[1:] {
			if anchorType == "rolling_max" && v > result {
				result = v
			}
			if anchorType == "rolling_min" && v < result {
				result = v
			}
		}
		return result, true
	default:
		return 0, false
	}
}

// validateExitSignalAndGetPrice returns the signal's price field only when
// the signal direction opposes the open position's side (a genuine exit
// signal) and a position is actually open; otherwise it reports false so
// callers treat the rule as having no opinion rather than acting on a
// malformed or irrelevant signal.
func validateExitSignalAndGetPrice(ctx Context, fieldPrice string) (float64, bool) {
	if !ctx.Position.Open() {
		return 0, false
	}
	isExitDirection := (ctx.Position.Side == SideLong && ctx.Signal.Direction == "sell") ||
		(ctx.Position.Side == SideShort && ctx.Signal.Direction == "buy")
	if !isExitDirection {
		return 0, false
	}
	price, ok := ctx.Signal.Fields[fieldPrice]
	if !ok {
		return 0, false
	}
	return price, true
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
