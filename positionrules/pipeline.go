package positionrules

import "backtestcore/logging"

type ruleEntry struct {
	rule    Rule
	oneShot bool
}

// Pipeline runs entry-veto and exit-fraction rules together, tracking
// one-shot firing state per ticker across an open-position lifecycle.
type Pipeline struct {
	entries []ruleEntry
	logger  logging.Logger

	fired map[string]map[int]bool
}

// NewPipeline builds a Pipeline. oneShot[i] tells whether entries[i] only
// fires once per open-position lifecycle; a rule with no oneShot entry is
// not one-shot. (LoadConfig supplies true for take-profit and stop-loss
// rules unless their config says otherwise.)
func NewPipeline(rules []Rule, oneShot []bool) *Pipeline {
	entries := make([]ruleEntry, len(rules))
	for i, r := range rules {
		os := false
		if i < len(oneShot) {
			os = oneShot[i]
		}
		entries[i] = ruleEntry{rule: r, oneShot: os}
	}
	return &Pipeline{
		entries: entries,
		logger:  logging.Default().With("component", "position_rule_pipeline"),
		fired:   make(map[string]map[int]bool),
	}
}

// DecideEntry reports whether every rule permits the entry signal in ctx.
// Any rule vetoing (AllowEntry=false), or panicking, vetoes the whole
// pipeline.
func (p *Pipeline) DecideEntry(ctx Context) bool {
	for _, e := range p.entries {
		d, panicked := p.evaluateSafe(e.rule, ctx)
		if panicked || (d.AllowEntry != nil && !*d.AllowEntry) {
			return false
		}
	}
	return true
}

// DecideExit returns the merged exit fraction (clamped to [0,1]) and the
// reason of whichever rule contributed the maximum, ties broken by rule
// order. A fired one-shot rule is skipped until ResetForTicker is called.
func (p *Pipeline) DecideExit(ctx Context) (float64, *string) {
	ticker := ctx.Signal.Ticker
	maxFraction := 0.0
	var reason *string

	for i, e := range p.entries {
		if e.oneShot && p.hasFired(ticker, i) {
			continue
		}
		d, _ := p.evaluateSafe(e.rule, ctx)
		if d.ExitFraction == nil {
			continue
		}
		frac := clampFraction(*d.ExitFraction)
		if frac > 0 && e.oneShot {
			p.markFired(ticker, i)
		}
		if frac > maxFraction {
			maxFraction = frac
			r := d.Reason
			reason = &r
		}
	}

	if scaling := p.scalingRule(); scaling != nil {
		maxFraction = scaling.promoteIfScaleOutDisabled(maxFraction)
	}

	if maxFraction == 0 {
		return 0, nil
	}
	return maxFraction, reason
}

// AllowScaleIn reports whether an entry signal may add to an open position,
// per the pipeline's ScalingRule (defaults to false — no scaling rule
// configured means no scale-in).
func (p *Pipeline) AllowScaleIn() bool {
	if r := p.scalingRule(); r != nil {
		return r.AllowScaleIn
	}
	return false
}

// AllowScaleOut reports whether partial exits are honored as-is, per the
// pipeline's ScalingRule (defaults to true).
func (p *Pipeline) AllowScaleOut() bool {
	if r := p.scalingRule(); r != nil {
		return r.AllowScaleOut
	}
	return true
}

// ResetForTicker clears one-shot firing state for ticker, called once its
// position returns to flat.
func (p *Pipeline) ResetForTicker(ticker string) {
	delete(p.fired, ticker)
}

func (p *Pipeline) hasFired(ticker string, idx int) bool {
	m, ok := p.fired[ticker]
	if !ok {
		return false
	}
	return m[idx]
}

func (p *Pipeline) markFired(ticker string, idx int) {
	m, ok := p.fired[ticker]
	if !ok {
		m = make(map[int]bool)
		p.fired[ticker] = m
	}
	m[idx] = true
}

func (p *Pipeline) scalingRule() *ScalingRule {
	for _, e := range p.entries {
		if s, ok := e.rule.(*ScalingRule); ok {
			return s
		}
	}
	return nil
}

func (p *Pipeline) evaluateSafe(r Rule, ctx Context) (d Decision, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warnf("position rule %T panicked on ticker %s: %v", r, ctx.Signal.Ticker, rec)
			d = Decision{}
			panicked = true
		}
	}()
	return r.Evaluate(ctx), false
}
