package processor

import (
	"testing"
	"time"

	"backtestcore/ohlcvcache"
)

func TestInvalidFrequencyFallsBackToDaily(t *testing.T) {
	ts := NewTimeStepper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	idx := ts.BuildIndex("not_a_real_freq", start, end, ohlcvcache.Frame{})
	if len(idx) != 5 {
		t.Fatalf("expected 5 daily steps over a 4-day span, got %d", len(idx))
	}
	for i := 1; i < len(idx); i++ {
		if idx[i].Sub(idx[i-1]) != 24*time.Hour {
			t.Fatalf("expected daily spacing, got %v", idx[i].Sub(idx[i-1]))
		}
	}
}

func TestAutoStepDetectsHourlyMode(t *testing.T) {
	ts := NewTimeStepper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := ohlcvcache.Frame{Bars: []ohlcvcache.Bar{
		{Time: base}, {Time: base.Add(time.Hour)}, {Time: base.Add(2 * time.Hour)}, {Time: base.Add(3 * time.Hour)},
	}}
	start := base
	end := base.Add(5 * time.Hour)
	idx := ts.BuildIndex("auto", start, end, frame)
	if len(idx) < 2 {
		t.Fatalf("expected multiple hourly steps, got %d", len(idx))
	}
	if idx[1].Sub(idx[0]) != time.Hour {
		t.Fatalf("expected auto-detected hourly step, got %v", idx[1].Sub(idx[0]))
	}
}

func TestExplicitFrequencies(t *testing.T) {
	ts := NewTimeStepper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	idx := ts.BuildIndex("hourly", start, end, ohlcvcache.Frame{})
	if len(idx) != 4 {
		t.Fatalf("expected 4 hourly steps, got %d", len(idx))
	}
}
