package portfolio

import "testing"

func TestPhase2RejectsSecondExecutionOverCapitalBudget(t *testing.T) {
	pipeline := NewPipeline([]Rule{MaxCapitalDeployedRule{MaxDeployedPct: 0.5}})

	executions := []Execution{
		{Ticker: "AAPL", Strategy: "s1", Time: 1000, Shares: 60, Price: 100}, // 6000 notional
		{Ticker: "MSFT", Strategy: "s2", Time: 1000, Shares: 60, Price: 100}, // 6000 notional
	}

	approved := pipeline.Apply(executions, 10000)
	if len(approved) != 1 {
		t.Fatalf("expected exactly 1 approved execution, got %d", len(approved))
	}
	if approved[0].Ticker != "AAPL" {
		t.Fatalf("expected the first execution to be approved, got %s", approved[0].Ticker)
	}
}

func TestFractionalPositionSizeResizesShares(t *testing.T) {
	pipeline := NewPipeline([]Rule{FractionalPositionSizeRule{FractionOfEquity: 0.1}})
	executions := []Execution{{Ticker: "AAPL", Shares: 999, Price: 100}}

	approved := pipeline.Apply(executions, 10000)
	if len(approved) != 1 {
		t.Fatalf("expected 1 approved execution, got %d", len(approved))
	}
	if approved[0].Shares != 10 {
		t.Fatalf("expected shares resized to floor(10000*0.1/100)=10, got %v", approved[0].Shares)
	}
}
