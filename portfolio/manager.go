// Package portfolio implements the phase-2 pass that takes already-approved
// per-strategy executions and filters/resizes them against a shared account.
package portfolio

import (
	"math"

	"backtestcore/metrics"
)

// Execution is one phase-1 execution awaiting a portfolio-level decision.
type Execution struct {
	Ticker   string
	Strategy string
	HashID   string
	Time     int64
	Shares   float64
	Price    float64
	Side     string
}

// Decision is a single rule's verdict on an execution.
type Decision struct {
	Reject bool
	Shares *float64 // non-nil overrides the execution's share count
	Reason string
}

// Rule is one portfolio-level constraint, evaluated against the running
// account state.
type Rule interface {
	Evaluate(exec Execution, accountValue, deployedCapital float64) Decision
}

// MaxCapitalDeployedRule rejects an execution once total deployed capital
// has already reached MaxDeployedPct of account value.
type MaxCapitalDeployedRule struct {
	MaxDeployedPct float64
}

// Evaluate implements Rule. It gates on capital already deployed before this
// execution, so the execution that first crosses the threshold is itself
// approved; only the next one is rejected.
func (r MaxCapitalDeployedRule) Evaluate(exec Execution, accountValue, deployedCapital float64) Decision {
	if deployedCapital >= r.MaxDeployedPct*accountValue {
		return Decision{Reject: true, Reason: "max_capital_deployed"}
	}
	return Decision{}
}

// FractionalPositionSizeRule resizes an execution's shares to a fixed
// fraction of current account equity.
type FractionalPositionSizeRule struct {
	FractionOfEquity float64
}

// Evaluate implements Rule.
func (r FractionalPositionSizeRule) Evaluate(exec Execution, accountValue, deployedCapital float64) Decision {
	shares := math.Floor(accountValue * r.FractionOfEquity / exec.Price)
	return Decision{Shares: &shares}
}

// Pipeline runs portfolio rules in order against a running account state,
// mirroring the position-rule pipeline's shape.
type Pipeline struct {
	rules []Rule
}

// NewPipeline builds a Pipeline from an ordered rule list.
func NewPipeline(rules []Rule) *Pipeline {
	return &Pipeline{rules: rules}
}

// Apply walks executions in order, applying every rule to each. A rule
// rejecting an execution drops it; a rule resizing it updates the share
// count in place for subsequent rules and the approved output. Approved
// executions' notional is added to the running deployed-capital total so
// later executions are judged against it.
func (p *Pipeline) Apply(executions []Execution, accountValue float64) []Execution {
	var approved []Execution
	deployed := 0.0

	for _, exec := range executions {
		rejected := false
		for _, rule := range p.rules {
			d := rule.Evaluate(exec, accountValue, deployed)
			if d.Reject {
				rejected = true
				metrics.RecordPortfolioFiltered(d.Reason)
				break
			}
			if d.Shares != nil {
				exec.Shares = *d.Shares
			}
		}
		if rejected {
			continue
		}
		approved = append(approved, exec)
		deployed += exec.Shares * exec.Price
	}
	return approved
}
