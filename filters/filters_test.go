package filters

import (
	"testing"
	"time"

	"backtestcore/ohlcvcache"
)

func TestPriceComparisonEpsilon(t *testing.T) {
	f := NewPriceComparisonFilter("close", OpEQ, 100.0)
	ctx := Context{Signal: Signal{Fields: map[string]float64{"close": 100.0 + 1e-10}}}
	if !f.IsValid(ctx) {
		t.Fatal("difference within epsilon should compare equal")
	}

	ctx2 := Context{Signal: Signal{Fields: map[string]float64{"close": 100.01}}}
	if f.IsValid(ctx2) {
		t.Fatal("difference beyond epsilon should not compare equal")
	}
}

func TestPriceComparisonMissingFieldRejects(t *testing.T) {
	f := NewPriceComparisonFilter("close", OpGT, 0)
	ctx := Context{Signal: Signal{Fields: map[string]float64{}}}
	if f.IsValid(ctx) {
		t.Fatal("missing field must reject, never error")
	}
}

func TestSMAComparisonInsufficientHistoryRejects(t *testing.T) {
	frame := ohlcvcache.Frame{Ticker: "AAPL"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		frame.Bars = append(frame.Bars, ohlcvcache.Bar{Time: base.AddDate(0, 0, i), Close: 100})
	}
	f := NewSMAComparisonFilter(5, 10, "", "", OpGT)
	ctx := Context{
		Signal:        Signal{Ticker: "AAPL", Time: base.AddDate(0, 0, 2).Unix()},
		OHLCVByTicker: map[string]ohlcvcache.Frame{"AAPL": frame},
	}
	if f.IsValid(ctx) {
		t.Fatal("fewer bars than window must reject")
	}
}

func TestSMAComparisonFallsBackToSignalFields(t *testing.T) {
	f := NewSMAComparisonFilter(0, 0, "sma_fast", "sma_slow", OpGT)
	ctx := Context{Signal: Signal{Fields: map[string]float64{"sma_fast": 10, "sma_slow": 5}}}
	if !f.IsValid(ctx) {
		t.Fatal("expected fallback comparison to pass")
	}
}

type panicFilter struct{}

func (panicFilter) IsValid(Context) bool { panic("boom") }

func TestPipelinePanicIsTreatedAsRejection(t *testing.T) {
	p := NewPipeline([]Filter{panicFilter{}})
	if p.IsValid(Context{}) {
		t.Fatal("a panicking filter must be treated as a rejection, not propagate")
	}
}

type rejectFilter struct{ called *bool }

func (r rejectFilter) IsValid(Context) bool {
	*r.called = true
	return false
}

func TestPipelineShortCircuits(t *testing.T) {
	secondCalled := false
	p := NewPipeline([]Filter{
		rejectFilter{called: new(bool)},
		rejectFilter{called: &secondCalled},
	})
	if p.IsValid(Context{}) {
		t.Fatal("expected rejection")
	}
	if secondCalled {
		t.Fatal("second filter must not run after first rejects")
	}
}
