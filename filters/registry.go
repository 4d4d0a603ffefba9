package filters

import "fmt"

// Constructor builds a Filter from its raw YAML parameter map.
type Constructor func(params map[string]any) (Filter, error)

var registry = map[string]Constructor{
	"price_comparison": buildPriceComparison,
	"sma_comparison":   buildSMAComparison,
}

// Build looks up filterType in the registry and invokes its constructor.
func Build(filterType string, params map[string]any) (Filter, error) {
	ctor, ok := registry[filterType]
	if !ok {
		return nil, fmt.Errorf("unknown filter type %q", filterType)
	}
	return ctor(params)
}

func buildPriceComparison(params map[string]any) (Filter, error) {
	field, _ := params["field"].(string)
	opRaw, _ := params["op"].(string)
	value, _ := toFloat(params["value"])
	if field == "" || opRaw == "" {
		return nil, fmt.Errorf("price_comparison filter requires field and op")
	}
	return NewPriceComparisonFilter(field, Operator(opRaw), value), nil
}

func buildSMAComparison(params map[string]any) (Filter, error) {
	fastWindow, _ := toInt(params["fast_window"])
	slowWindow, _ := toInt(params["slow_window"])
	fieldFast, _ := params["field_fast"].(string)
	fieldSlow, _ := params["field_slow"].(string)
	opRaw, _ := params["op"].(string)
	if opRaw == "" {
		return nil, fmt.Errorf("sma_comparison filter requires op")
	}
	return NewSMAComparisonFilter(fastWindow, slowWindow, fieldFast, fieldSlow, Operator(opRaw)), nil
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
