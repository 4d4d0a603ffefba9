package journal

import "backtestcore/ohlcvcache"

// Efficiency computes a trade's 0-100 efficiency score: how much of the
// best available favorable excursion during the hold was actually
// captured. Returns 0 when the denominator is non-positive or the
// ticker's OHLCV isn't available over the hold window.
func Efficiency(t Trade, frame ohlcvcache.Frame) float64 {
	maxHigh, ok := maxHighDuringHold(frame, t.EntryTime, t.ExitTime)
	if !ok {
		return 0
	}
	denominator := maxHigh - t.EntryPrice
	if denominator <= 0 {
		return 0
	}
	captured := (t.ExitPrice - t.EntryPrice) / denominator * 100
	return clip(captured, 0, 100)
}

func maxHighDuringHold(frame ohlcvcache.Frame, entryTime, exitTime int64) (float64, bool) {
	found := false
	var maxHigh float64
	for _, b := range frame.Bars {
		// Times are already normalized to UTC on ingest (see ohlcvcache.Bar).
		ts := b.Time.Unix()
		if ts < entryTime || ts > exitTime {
			continue
		}
		if !found || b.High > maxHigh {
			maxHigh = b.High
			found = true
		}
	}
	return maxHigh, found
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
