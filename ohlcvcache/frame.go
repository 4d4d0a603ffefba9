package ohlcvcache

import "time"

// Bar is one OHLCV record. Time is always UTC.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Frame is an ordered, strictly time-increasing sequence of bars for a
// single ticker.
type Frame struct {
	Ticker string
	Bars   []Bar
}

// Empty reports whether the frame carries no bars.
func (f Frame) Empty() bool { return len(f.Bars) == 0 }
