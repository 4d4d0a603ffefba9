package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"backtestcore/ohlcvcache"
	"backtestcore/positionrules"
)

// Execution is one already-sized PM execution intent, as produced once a
// sizing stage has resolved the position manager's abstract intent stream
// into concrete share counts.
type Execution struct {
	Ticker    string
	Strategy  string
	Time      int64
	Action    string // "open", "scale_in", "scale_out", "close"
	Side      positionrules.Side
	Shares    float64
	Price     float64
}

type pmOpenTrade struct {
	tradeID string
	shares  float64
	side    positionrules.Side
	entryTime int64
	entryPrice float64
	entryShares float64
}

// PMMatch walks a ticker's already-sized executions in order, maintaining
// (trade_id, open_shares) state, and returns one execution id per execution
// (in input order) plus a closed Trade for every execution that fully or
// partially reduces an open position.
func PMMatch(executions []Execution, frame ohlcvcache.Frame) ([]Trade, []string) {
	var trades []Trade
	var executionIDs []string
	var open *pmOpenTrade

	for _, e := range executions {
		execID := computeExecutionID(e, tradeIDOrEmpty(open))
		executionIDs = append(executionIDs, execID)

		switch e.Action {
		case "open":
			open = &pmOpenTrade{
				tradeID: execID, shares: e.Shares, side: e.Side,
				entryTime: e.Time, entryPrice: e.Price, entryShares: e.Shares,
			}
		case "scale_in":
			if open == nil {
				open = &pmOpenTrade{
					tradeID: execID, shares: e.Shares, side: e.Side,
					entryTime: e.Time, entryPrice: e.Price, entryShares: e.Shares,
				}
				continue
			}
			open.shares += e.Shares
		case "scale_out", "close":
			if open == nil {
				continue
			}
			closedShares := e.Shares
			if closedShares > open.shares {
				closedShares = open.shares
			}
			grossPnL := computePnL(open.side, open.entryPrice, e.Price, closedShares)
			capitalAtEntry := closedShares * open.entryPrice
			pct := 0.0
			if capitalAtEntry != 0 {
				pct = grossPnL / capitalAtEntry * 100
			}
			tr := Trade{
				Ticker: e.Ticker, Strategy: e.Strategy, TradeID: open.tradeID, ExecutionID: execID,
				Side: open.side, EntryTime: open.entryTime, ExitTime: e.Time,
				EntryPrice: open.entryPrice, ExitPrice: e.Price, Shares: closedShares,
				GrossPnL: grossPnL, GrossPnLPct: pct, CapitalAtEntry: capitalAtEntry,
				TimeHeldHours: float64(e.Time-open.entryTime) / 3600,
			}
			tr.Efficiency = Efficiency(tr, frame)
			trades = append(trades, tr)
			open.shares -= closedShares
			if open.shares <= 0 {
				open = nil
			}
		}
	}

	return trades, executionIDs
}

func tradeIDOrEmpty(open *pmOpenTrade) string {
	if open == nil {
		return ""
	}
	return open.tradeID
}

// computeExecutionID derives a deterministic 16-hex id from the execution's
// inputs and the trade id it belongs to — same inputs always produce the
// same id.
func computeExecutionID(e Execution, tradeID string) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%s|%s|%g|%g", e.Ticker, e.Strategy, tradeID, e.Time, e.Side, e.Action, e.Shares, e.Price)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}
