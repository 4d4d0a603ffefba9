package strategy

import (
	"testing"
	"time"

	"backtestcore/ohlcvcache"
)

func bar(day int, close float64) ohlcvcache.Bar {
	return ohlcvcache.Bar{Time: time.Unix(0, 0).UTC().AddDate(0, 0, day), Close: close}
}

func TestGenerateSignalsRejectsFastNotLessThanSlow(t *testing.T) {
	s := SMACross{FastWindow: 10, SlowWindow: 5}
	_, err := s.GenerateSignals("AAPL", ohlcvcache.Frame{}, nil)
	if err == nil {
		t.Fatal("expected error when fast window is not less than slow window")
	}
}

func TestGenerateSignalsDetectsCrossUp(t *testing.T) {
	s := SMACross{FastWindow: 2, SlowWindow: 3}
	bars := []ohlcvcache.Bar{
		bar(0, 10), bar(1, 10), bar(2, 10), bar(3, 10), bar(4, 20), bar(5, 20),
	}
	frame := ohlcvcache.Frame{Ticker: "AAPL", Bars: bars}

	signals, err := s.GenerateSignals("AAPL", frame, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawBuy bool
	for _, sig := range signals {
		if sig.Direction == "buy" {
			sawBuy = true
		}
	}
	if !sawBuy {
		t.Fatalf("expected a buy signal on the upward cross, got %+v", signals)
	}
}
