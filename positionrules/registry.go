package positionrules

import "fmt"

// built pairs a constructed rule with whether it defaults to one-shot.
type built struct {
	rule    Rule
	oneShot bool
}

type constructor func(params map[string]any) (built, error)

var registry = map[string]constructor{
	"scaling":     buildScaling,
	"take_profit": buildTakeProfit,
	"stop_loss":   buildStopLoss,
}

// Build looks up ruleType in the registry and invokes its constructor.
func Build(ruleType string, params map[string]any) (Rule, bool, error) {
	ctor, ok := registry[ruleType]
	if !ok {
		return nil, false, fmt.Errorf("unknown position rule type %q", ruleType)
	}
	b, err := ctor(params)
	if err != nil {
		return nil, false, err
	}
	return b.rule, b.oneShot, nil
}

func buildScaling(params map[string]any) (built, error) {
	allowScaleIn, _ := params["allow_scale_in"].(bool)
	var allowScaleOut *bool
	if v, ok := params["allow_scale_out"].(bool); ok {
		allowScaleOut = &v
	}
	return built{rule: NewScalingRule(allowScaleIn, allowScaleOut), oneShot: false}, nil
}

func buildTakeProfit(params map[string]any) (built, error) {
	anchor, err := parseAnchor(params)
	if err != nil {
		return built{}, fmt.Errorf("take_profit: %w", err)
	}
	targetPct, _ := toFloat(params["target_pct"])
	fraction, ok := toFloat(params["fraction"])
	if !ok {
		fraction = 1.0
	}
	fieldPrice, _ := params["field_price"].(string)
	if fieldPrice == "" {
		fieldPrice = "price"
	}
	return built{rule: NewTakeProfitRule(anchor, targetPct, fraction, fieldPrice), oneShot: anchor.OneShot}, nil
}

func buildStopLoss(params map[string]any) (built, error) {
	anchor, err := parseAnchor(params)
	if err != nil {
		return built{}, fmt.Errorf("stop_loss: %w", err)
	}
	lossPct, _ := toFloat(params["loss_pct"])
	fraction, ok := toFloat(params["fraction"])
	if !ok {
		fraction = 1.0
	}
	fieldPrice, _ := params["field_price"].(string)
	if fieldPrice == "" {
		fieldPrice = "price"
	}
	return built{rule: NewStopLossRule(anchor, lossPct, fraction, fieldPrice), oneShot: anchor.OneShot}, nil
}

func parseAnchor(params map[string]any) (AnchorConfig, error) {
	anchorType, _ := params["anchor_type"].(string)
	if anchorType == "" {
		anchorType = "entry_price"
	}
	anchorField, _ := params["anchor_field"].(string)
	if anchorField == "" {
		anchorField = "close"
	}
	var lookback *int
	if n, ok := toInt(params["lookback_bars"]); ok {
		lookback = &n
	}
	oneShot := true
	if v, ok := params["one_shot"].(bool); ok {
		oneShot = v
	}
	return AnchorConfig{AnchorType: anchorType, AnchorField: anchorField, LookbackBars: lookback, OneShot: oneShot}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
