// Package execution applies slippage, commission, and fill-delay to journal
// trades, turning gross P&L into a realistic net P&L.
package execution

import (
	"backtestcore/journal"
	"backtestcore/ohlcvcache"
	"backtestcore/positionrules"
)

// Config holds the execution-cost parameters that are also part of the
// backtest config hash.
type Config struct {
	SlippageBps        float64
	CommissionPerShare float64
	UseLimitOrders     bool
	FillDelayMinutes   float64
}

// Result is a trade after execution-cost simulation.
type Result struct {
	journal.Trade
	NetPnL     float64
	Commission float64
}

// Simulate applies cfg to every trade in trades, using frame (the ticker's
// OHLCV) to resolve fill-delayed prices. A trade whose delayed fill has no
// matching bar is dropped from the output.
func Simulate(trades []journal.Trade, frame ohlcvcache.Frame, cfg Config) []Result {
	var out []Result
	for _, t := range trades {
		adjusted := t

		if cfg.FillDelayMinutes > 0 {
			entryPrice, ok := delayedFillPrice(frame, adjusted.EntryTime, cfg.FillDelayMinutes)
			if !ok {
				continue
			}
			exitPrice, ok := delayedFillPrice(frame, adjusted.ExitTime, cfg.FillDelayMinutes)
			if !ok {
				continue
			}
			adjusted.EntryPrice = entryPrice
			adjusted.ExitPrice = exitPrice
		}

		adjusted.EntryPrice = applySlippage(adjusted.EntryPrice, cfg.SlippageBps, adjusted.Side, true)
		adjusted.ExitPrice = applySlippage(adjusted.ExitPrice, cfg.SlippageBps, adjusted.Side, false)

		adjusted.GrossPnL = recomputeGrossPnL(adjusted)
		if adjusted.CapitalAtEntry != 0 {
			adjusted.GrossPnLPct = adjusted.GrossPnL / adjusted.CapitalAtEntry * 100
		}

		commission := cfg.CommissionPerShare * adjusted.Shares
		netPnL := adjusted.GrossPnL - 2*commission

		out = append(out, Result{Trade: adjusted, NetPnL: netPnL, Commission: commission})
	}
	return out
}

func recomputeGrossPnL(t journal.Trade) float64 {
	if t.Side == positionrules.SideShort {
		return t.Shares * (t.EntryPrice - t.ExitPrice)
	}
	return t.Shares * (t.ExitPrice - t.EntryPrice)
}

// applySlippage nudges price unfavorably for the trader: LONG entries and
// SHORT exits pay up; LONG exits and SHORT entries receive less.
func applySlippage(price, bps float64, side positionrules.Side, isEntry bool) float64 {
	isLong := side != positionrules.SideShort
	paysUp := (isLong && isEntry) || (!isLong && !isEntry)
	factor := bps / 10000
	if paysUp {
		return price * (1 + factor)
	}
	return price * (1 - factor)
}

func delayedFillPrice(frame ohlcvcache.Frame, signalTime int64, delayMinutes float64) (float64, bool) {
	targetTime := signalTime + int64(delayMinutes*60)
	for _, b := range frame.Bars {
		if b.Time.Unix() >= targetTime {
			return b.Open, true
		}
	}
	return 0, false
}
