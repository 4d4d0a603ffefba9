package positionmanager

import (
	"testing"
	"time"

	"backtestcore/ohlcvcache"
	"backtestcore/positionrules"
)

func bar(day int, close float64) ohlcvcache.Bar {
	return ohlcvcache.Bar{
		Time:  time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:  close, High: close, Low: close, Close: close, Volume: 1000,
	}
}

func TestSignalsOnlyDropsExitWithNoOpenPosition(t *testing.T) {
	pipeline := positionrules.NewPipeline(nil, nil)
	signals := []Signal{
		{Ticker: "AAPL", Time: 1, Direction: "sell", Fields: map[string]float64{"price": 100}},
	}
	intents := RunSignalsOnly("AAPL", signals, pipeline)
	if len(intents) != 0 {
		t.Fatalf("exit signal with no open position must be dropped, got %v", intents)
	}
}

func TestScalingRuleDropsSecondEntry(t *testing.T) {
	scaling := positionrules.NewScalingRule(false, nil)
	pipeline := positionrules.NewPipeline([]positionrules.Rule{scaling}, []bool{false})

	signals := []Signal{
		{Ticker: "AAPL", Time: 1, Direction: "buy", Fields: map[string]float64{"price": 100}},
		{Ticker: "AAPL", Time: 2, Direction: "buy", Fields: map[string]float64{"price": 101}},
		{Ticker: "AAPL", Time: 3, Direction: "sell", Fields: map[string]float64{"price": 105}},
	}
	intents := RunSignalsOnly("AAPL", signals, pipeline)

	var opens, closes int
	for _, in := range intents {
		switch in.Action {
		case "open":
			opens++
		case "close":
			closes++
		}
	}
	if opens != 1 {
		t.Fatalf("expected exactly one open intent (second buy dropped), got %d", opens)
	}
	if closes != 1 {
		t.Fatalf("expected exactly one close intent, got %d", closes)
	}
}

func TestTakeProfitOneShotFiresOnceAcrossBars(t *testing.T) {
	tp := positionrules.NewTakeProfitRule(positionrules.AnchorConfig{AnchorType: "entry_price", OneShot: true}, 0.08, 0.5, "price")
	pipeline := positionrules.NewPipeline([]positionrules.Rule{tp}, []bool{true})

	frame := ohlcvcache.Frame{Ticker: "AAPL", Bars: []ohlcvcache.Bar{
		bar(1, 100), bar(2, 110), bar(3, 111), bar(4, 110),
	}}
	signals := []Signal{
		{Ticker: "AAPL", Time: frame.Bars[0].Time.Unix(), Direction: "buy", Fields: map[string]float64{"price": 100}},
	}

	intents := Run("AAPL", signals, frame, pipeline)

	var partialExits []Intent
	for _, in := range intents {
		if in.PMGenerated && in.Fraction > 0 {
			partialExits = append(partialExits, in)
		}
	}
	if len(partialExits) != 1 {
		t.Fatalf("expected exactly one PM-generated partial exit, got %d: %+v", len(partialExits), partialExits)
	}
	if partialExits[0].Fraction != 0.5 {
		t.Fatalf("expected exit_fraction=0.5, got %v", partialExits[0].Fraction)
	}
	if partialExits[0].Reason != "take_profit" {
		t.Fatalf("expected reason=take_profit, got %s", partialExits[0].Reason)
	}
	if partialExits[0].Time != frame.Bars[1].Time.Unix() {
		t.Fatalf("expected the partial exit at the 110 bar, got time %d", partialExits[0].Time)
	}
}

func TestIntentStreamIsTimeMonotonic(t *testing.T) {
	tp := positionrules.NewTakeProfitRule(positionrules.AnchorConfig{AnchorType: "entry_price", OneShot: true}, 0.01, 0.5, "price")
	pipeline := positionrules.NewPipeline([]positionrules.Rule{tp}, []bool{true})

	frame := ohlcvcache.Frame{Ticker: "AAPL", Bars: []ohlcvcache.Bar{
		bar(1, 100), bar(2, 105), bar(3, 108), bar(4, 112),
	}}
	signals := []Signal{
		{Ticker: "AAPL", Time: frame.Bars[0].Time.Unix(), Direction: "buy", Fields: map[string]float64{"price": 100}},
	}
	intents := Run("AAPL", signals, frame, pipeline)

	for i := 1; i < len(intents); i++ {
		if intents[i].Time < intents[i-1].Time {
			t.Fatalf("intent stream must be time-monotonic, got %d after %d", intents[i].Time, intents[i-1].Time)
		}
	}
}

func TestExitFractionAlwaysInRange(t *testing.T) {
	scaling := positionrules.NewScalingRule(false, nil)
	tp := positionrules.NewTakeProfitRule(positionrules.AnchorConfig{AnchorType: "entry_price", OneShot: false}, 0.01, 5.0, "price")
	pipeline := positionrules.NewPipeline([]positionrules.Rule{scaling, tp}, []bool{false, false})

	signals := []Signal{
		{Ticker: "AAPL", Time: 1, Direction: "buy", Fields: map[string]float64{"price": 100}},
		{Ticker: "AAPL", Time: 2, Direction: "sell", Fields: map[string]float64{"price": 110}},
	}
	intents := RunSignalsOnly("AAPL", signals, pipeline)
	for _, in := range intents {
		if in.Fraction < 0 || in.Fraction > 1 {
			t.Fatalf("exit fraction must be in [0,1], got %v", in.Fraction)
		}
	}
}
