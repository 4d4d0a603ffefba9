// Package filters implements the ordered, short-circuiting predicate chain
// that gates which signals reach the position-rule pipeline.
package filters

import (
	"backtestcore/logging"
	"backtestcore/ohlcvcache"
)

// Signal is the minimal signal shape a filter inspects. Fields is the raw
// strategy-emitted field set (price, any custom indicator values); Time and
// Ticker identify which bar the signal was emitted against.
type Signal struct {
	Ticker string
	Time   int64 // unix seconds, UTC
	Fields map[string]float64
}

// Context bundles a signal with the OHLCV history available to filters that
// need it (SMA comparison).
type Context struct {
	Signal       Signal
	OHLCVByTicker map[string]ohlcvcache.Frame
}

// Filter decides whether a signal should continue through the pipeline.
type Filter interface {
	IsValid(ctx Context) bool
}

// Pipeline runs an ordered list of filters; the first rejection
// short-circuits evaluation.
type Pipeline struct {
	filters []Filter
	logger  logging.Logger
}

// NewPipeline builds a Pipeline from an ordered filter list.
func NewPipeline(fs []Filter) *Pipeline {
	return &Pipeline{filters: fs, logger: logging.Default().With("component", "filter_pipeline")}
}

// IsValid returns true only if every filter accepts ctx. A filter panic is
// recovered, logged at warning level, and treated as a rejection so a
// single misbehaving filter never poisons the rest of the run.
func (p *Pipeline) IsValid(ctx Context) (valid bool) {
	for _, f := range p.filters {
		if !p.evalOne(f, ctx) {
			return false
		}
	}
	return true
}

func (p *Pipeline) evalOne(f Filter, ctx Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warnf("filter %T panicked on ticker %s: %v", f, ctx.Signal.Ticker, r)
			ok = false
		}
	}()
	return f.IsValid(ctx)
}

// Concat appends several pipelines' filters into one, preserving relative
// order within and across the inputs — used when multiple config files are
// loaded and merged into a single pipeline.
func Concat(pipelines ...*Pipeline) *Pipeline {
	var all []Filter
	for _, p := range pipelines {
		if p == nil {
			continue
		}
		all = append(all, p.filters...)
	}
	return NewPipeline(all)
}
