package positionrules

// StopLossRule exits (a fraction of) an open position once price has moved
// unfavorably by LossPct relative to the configured anchor. Symmetric to
// TakeProfitRule: the inequality direction flips sign instead of swapping
// operators.
type StopLossRule struct {
	Anchor     AnchorConfig
	LossPct    float64
	Fraction   float64
	FieldPrice string
}

// NewStopLossRule builds a StopLossRule.
func NewStopLossRule(anchor AnchorConfig, lossPct, fraction float64, fieldPrice string) *StopLossRule {
	return &StopLossRule{Anchor: anchor, LossPct: lossPct, Fraction: fraction, FieldPrice: fieldPrice}
}

// Evaluate implements Rule.
func (r *StopLossRule) Evaluate(ctx Context) Decision {
	price, ok := validateExitSignalAndGetPrice(ctx, r.FieldPrice)
	if !ok {
		return Decision{}
	}
	anchor, ok := computeAnchorPrice(ctx, r.Anchor.AnchorType, r.Anchor.AnchorField, r.Anchor.LookbackBars)
	if !ok || anchor == 0 {
		return Decision{}
	}

	move := (price - anchor) / anchor
	if ctx.Position.Side == SideShort {
		move = -move
	}
	if move > -r.LossPct {
		return Decision{}
	}

	fraction := clampFraction(r.Fraction)
	return Decision{ExitFraction: &fraction, Reason: "stop_loss"}
}
