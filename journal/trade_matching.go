package journal

import (
	"math"
	"sort"

	"backtestcore/ohlcvcache"
	"backtestcore/positionrules"
)

// Signal is a directional entry/exit signal as consumed by FIFO matching.
type Signal struct {
	Ticker    string
	Time      int64
	Direction string // "buy" or "sell"
	Price     float64
}

// AccountSizing switches FIFO matching from fixed capital-per-trade sizing
// to a running account-value percentage sizing.
type AccountSizing struct {
	InitialAccountValue float64
	TradePercentage     float64
}

type openEntry struct {
	time  int64
	price float64
	side  positionrules.Side
}

// FIFOMatch pairs entry/exit signals per ticker using a single
// not-side-segregated queue: the first signal for a ticker opens an entry,
// and every subsequent signal for that ticker closes the oldest open entry
// — regardless of that signal's own direction. This preserves a known
// ambiguity: a SHORT-direction signal arriving while an unmatched LONG
// entry is open pairs against that LONG as its exit rather than opening an
// independent SHORT position, because the queue carries no side
// segregation to tell the two apart.
func FIFOMatch(ticker, strategy string, signals []Signal, capitalPerTrade float64, sizing *AccountSizing, frame ohlcvcache.Frame) []Trade {
	sorted := make([]Signal, len(signals))
	copy(sorted, signals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var trades []Trade
	var queue []openEntry
	accountValue := 0.0
	if sizing != nil {
		accountValue = sizing.InitialAccountValue
	}

	for _, s := range sorted {
		if len(queue) == 0 {
			side := positionrules.SideLong
			if s.Direction == "sell" {
				side = positionrules.SideShort
			}
			queue = append(queue, openEntry{time: s.Time, price: s.Price, side: side})
			continue
		}

		entry := queue[0]
		queue = queue[1:]

		var shares float64
		if sizing != nil {
			shares = math.Floor(accountValue * sizing.TradePercentage / s.Price)
		} else {
			shares = math.Floor(capitalPerTrade / s.Price)
		}

		grossPnL := computePnL(entry.side, entry.price, s.Price, shares)
		capitalAtEntry := shares * entry.price
		pct := 0.0
		if capitalAtEntry != 0 {
			pct = grossPnL / capitalAtEntry * 100
		}

		tr := Trade{
			Ticker: ticker, Strategy: strategy, Side: entry.side,
			EntryTime: entry.time, ExitTime: s.Time,
			EntryPrice: entry.price, ExitPrice: s.Price,
			Shares: shares, GrossPnL: grossPnL, GrossPnLPct: pct,
			CapitalAtEntry: capitalAtEntry,
			TimeHeldHours:  float64(s.Time-entry.time) / 3600,
		}
		tr.Efficiency = Efficiency(tr, frame)
		trades = append(trades, tr)

		if sizing != nil {
			accountValue += grossPnL
		}
	}

	return trades
}
