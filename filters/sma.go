package filters

import "backtestcore/ohlcvcache"

// smaAsOf computes the simple moving average of Close over the last window
// bars at or before asOf (unix seconds). Returns false if there aren't at
// least window qualifying bars.
func smaAsOf(frame ohlcvcache.Frame, asOf int64, window int) (float64, bool) {
	if window <= 0 {
		return 0, false
	}
	var closes []float64
	for _, b := range frame.Bars {
		if b.Time.Unix() > asOf {
			break
		}
		closes = append(closes, b.Close)
	}
	if len(closes) < window {
		return 0, false
	}
	tail := closes[len(closes)-window:]
	var sum float64
	for _, c := range tail {
		sum += c
	}
	return sum / float64(window), true
}
