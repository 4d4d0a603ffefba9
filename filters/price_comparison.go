package filters

import "math"

// epsilon is the tolerance used for == and != float comparisons.
const epsilon = 1e-9

// Operator is one of the six supported comparison operators.
type Operator string

const (
	OpGT Operator = ">"
	OpLT Operator = "<"
	OpGE Operator = ">="
	OpLE Operator = "<="
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

// PriceComparisonFilter rejects a signal unless signal.Fields[Field] <op> Value.
// A missing field is always a rejection, never an error.
type PriceComparisonFilter struct {
	Field string
	Op    Operator
	Value float64
}

// NewPriceComparisonFilter constructs a PriceComparisonFilter from raw
// config values, as loaded from a filters: YAML entry.
func NewPriceComparisonFilter(field string, op Operator, value float64) *PriceComparisonFilter {
	return &PriceComparisonFilter{Field: field, Op: op, Value: value}
}

// IsValid implements Filter.
func (f *PriceComparisonFilter) IsValid(ctx Context) bool {
	v, ok := ctx.Signal.Fields[f.Field]
	if !ok {
		return false
	}
	return compare(v, f.Op, f.Value)
}

func compare(a float64, op Operator, b float64) bool {
	switch op {
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpGE:
		return a >= b
	case OpLE:
		return a <= b
	case OpEQ:
		return math.Abs(a-b) < epsilon
	case OpNE:
		return math.Abs(a-b) >= epsilon
	default:
		return false
	}
}
