package filters

// SMAComparisonFilter rejects a signal unless the fast SMA compares
// favorably to the slow SMA. When FastWindow/SlowWindow are both set and
// the ticker's OHLCV is available, both SMAs are computed from the close
// column; otherwise it falls back to reading FieldFast/FieldSlow directly
// off the signal. Insufficient bar history for either window is a
// rejection.
type SMAComparisonFilter struct {
	FastWindow int
	SlowWindow int
	FieldFast  string
	FieldSlow  string
	Op         Operator
}

// NewSMAComparisonFilter constructs an SMAComparisonFilter from config
// values.
func NewSMAComparisonFilter(fastWindow, slowWindow int, fieldFast, fieldSlow string, op Operator) *SMAComparisonFilter {
	return &SMAComparisonFilter{
		FastWindow: fastWindow,
		SlowWindow: slowWindow,
		FieldFast:  fieldFast,
		FieldSlow:  fieldSlow,
		Op:         op,
	}
}

// IsValid implements Filter.
func (f *SMAComparisonFilter) IsValid(ctx Context) bool {
	fast, slow, ok := f.resolve(ctx)
	if !ok {
		return false
	}
	return compare(fast, f.Op, slow)
}

func (f *SMAComparisonFilter) resolve(ctx Context) (fast, slow float64, ok bool) {
	if f.FastWindow > 0 && f.SlowWindow > 0 {
		frame, haveFrame := ctx.OHLCVByTicker[ctx.Signal.Ticker]
		if haveFrame {
			fastVal, fastOK := smaAsOf(frame, ctx.Signal.Time, f.FastWindow)
			slowVal, slowOK := smaAsOf(frame, ctx.Signal.Time, f.SlowWindow)
			if fastOK && slowOK {
				return fastVal, slowVal, true
			}
			return 0, 0, false
		}
	}
	fastVal, fastOK := ctx.Signal.Fields[f.FieldFast]
	slowVal, slowOK := ctx.Signal.Fields[f.FieldSlow]
	if !fastOK || !slowOK {
		return 0, 0, false
	}
	return fastVal, slowVal, true
}
