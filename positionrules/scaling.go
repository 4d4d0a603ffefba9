package positionrules

// ScalingRule governs whether an entry signal may add to an already-open
// position, and whether a partial exit may be honored at all.
type ScalingRule struct {
	AllowScaleIn  bool
	AllowScaleOut bool // defaults true at construction
}

// NewScalingRule builds a ScalingRule with the spec's default
// AllowScaleOut=true.
func NewScalingRule(allowScaleIn bool, allowScaleOut *bool) *ScalingRule {
	scaleOut := true
	if allowScaleOut != nil {
		scaleOut = *allowScaleOut
	}
	return &ScalingRule{AllowScaleIn: allowScaleIn, AllowScaleOut: scaleOut}
}

// Evaluate implements Rule.
func (r *ScalingRule) Evaluate(ctx Context) Decision {
	var d Decision
	if ctx.Position.Open() && ctx.Signal.Direction == entryDirection(ctx.Position.Side) && !r.AllowScaleIn {
		allow := false
		d.AllowEntry = &allow
	}
	return d
}

func entryDirection(side Side) string {
	switch side {
	case SideLong:
		return "buy"
	case SideShort:
		return "sell"
	default:
		return ""
	}
}

// promoteIfScaleOutDisabled implements the "any non-zero exit becomes a
// full exit" rule when AllowScaleOut is false. It is invoked by the
// pipeline after combining all rules' exit fractions, not per-rule, since
// it must see the pipeline's final merged fraction.
func (r *ScalingRule) promoteIfScaleOutDisabled(fraction float64) float64 {
	if !r.AllowScaleOut && fraction > 0 {
		return 1.0
	}
	return fraction
}
