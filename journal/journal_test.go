package journal

import (
	"math"
	"testing"

	"backtestcore/ohlcvcache"
)

func TestFIFOMatchSingleLongCycle(t *testing.T) {
	signals := []Signal{
		{Ticker: "AAPL", Time: 1, Direction: "buy", Price: 100},
		{Ticker: "AAPL", Time: 2, Direction: "sell", Price: 105},
	}
	trades := FIFOMatch("AAPL", "sma_cross", signals, 10000, nil, ohlcvcache.Frame{})
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Shares != 95 {
		t.Fatalf("expected shares=95 (floor(10000/105)), got %v", tr.Shares)
	}
	if math.Abs(tr.GrossPnL-475) > 1e-9 {
		t.Fatalf("expected gross_pnl=475, got %v", tr.GrossPnL)
	}
	if math.Abs(tr.GrossPnLPct-5.0) > 1e-6 {
		t.Fatalf("expected gross_pnl_pct≈5.0, got %v", tr.GrossPnLPct)
	}

	metrics := Compute(trades, 10000, 0.04)
	if metrics.WinRate != 100 {
		t.Fatalf("expected win_rate=100, got %v", metrics.WinRate)
	}
	if metrics.TotalTrades != 1 {
		t.Fatalf("expected total_trades=1, got %d", metrics.TotalTrades)
	}
}

func TestFIFOMatchShortPairsWithOpenLong(t *testing.T) {
	// A SHORT-direction signal arriving while a LONG entry is open must
	// pair against that LONG as its exit, not open an independent SHORT.
	signals := []Signal{
		{Ticker: "AAPL", Time: 1, Direction: "buy", Price: 100},
		{Ticker: "AAPL", Time: 2, Direction: "sell", Price: 110},
	}
	trades := FIFOMatch("AAPL", "s", signals, 1000, nil, ohlcvcache.Frame{})
	if len(trades) != 1 {
		t.Fatalf("expected the sell to close the open long, got %d trades", len(trades))
	}
}

func TestMaxDrawdownAndSharpeZeroBelowTwoTrades(t *testing.T) {
	if m := Compute(nil, 10000, 0.04); m.MaxDrawdown != 0 || m.SharpeRatio != 0 {
		t.Fatalf("expected zeroed metrics for no trades, got %+v", m)
	}
	one := []Trade{{GrossPnL: 10, CapitalAtEntry: 100, ExitTime: 10, EntryTime: 0}}
	m := Compute(one, 10000, 0.04)
	if m.SharpeRatio != 0 {
		t.Fatalf("sharpe_ratio must be 0 with a single trade, got %v", m.SharpeRatio)
	}
}

func TestPMMatchExecutionIDIsDeterministic(t *testing.T) {
	execs := []Execution{
		{Ticker: "AAPL", Strategy: "s", Time: 1, Action: "open", Shares: 10, Price: 100},
	}
	_, ids1 := PMMatch(execs, ohlcvcache.Frame{})
	_, ids2 := PMMatch(execs, ohlcvcache.Frame{})
	if ids1[0] != ids2[0] {
		t.Fatalf("execution id must be a pure function of its inputs: %s vs %s", ids1[0], ids2[0])
	}
	if len(ids1[0]) != 16 {
		t.Fatalf("expected 16-hex execution id, got %q", ids1[0])
	}
}
