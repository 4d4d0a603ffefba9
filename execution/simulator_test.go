package execution

import (
	"math"
	"testing"

	"backtestcore/journal"
	"backtestcore/ohlcvcache"
	"backtestcore/positionrules"
)

func TestCommissionSymmetry(t *testing.T) {
	trade := journal.Trade{
		Side: positionrules.SideLong, EntryPrice: 100, ExitPrice: 110, Shares: 10,
		CapitalAtEntry: 1000,
	}
	cfg := Config{SlippageBps: 0, CommissionPerShare: 0.01}
	results := Simulate([]journal.Trade{trade}, ohlcvcache.Frame{}, cfg)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	expectedNet := r.GrossPnL - 2*r.Commission
	if math.Abs(r.NetPnL-expectedNet) > 1e-9 {
		t.Fatalf("net_pnl must equal gross_pnl - 2*commission, got net=%v expected=%v", r.NetPnL, expectedNet)
	}
	if math.Abs(r.Commission-0.1) > 1e-9 {
		t.Fatalf("expected commission=0.1 (0.01*10), got %v", r.Commission)
	}
}

func TestSlippageAppliesCorrectSign(t *testing.T) {
	trade := journal.Trade{Side: positionrules.SideLong, EntryPrice: 100, ExitPrice: 110, Shares: 1}
	cfg := Config{SlippageBps: 100} // 1%
	results := Simulate([]journal.Trade{trade}, ohlcvcache.Frame{}, cfg)
	r := results[0]
	if r.EntryPrice <= 100 {
		t.Fatalf("LONG entry should pay up with slippage, got %v", r.EntryPrice)
	}
	if r.ExitPrice >= 110 {
		t.Fatalf("LONG exit should receive less with slippage, got %v", r.ExitPrice)
	}
}

func TestFillDelayDropsTradeWithNoMatchingBar(t *testing.T) {
	trade := journal.Trade{Side: positionrules.SideLong, EntryPrice: 100, ExitPrice: 110, Shares: 1, EntryTime: 0, ExitTime: 100}
	cfg := Config{FillDelayMinutes: 1000000}
	results := Simulate([]journal.Trade{trade}, ohlcvcache.Frame{}, cfg)
	if len(results) != 0 {
		t.Fatalf("expected trade to be dropped when no bar satisfies the fill delay, got %d", len(results))
	}
}
