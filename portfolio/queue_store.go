package portfolio

import (
	"encoding/json"
	"fmt"

	"backtestcore/queuebroker"
)

// tradesPayload mirrors the subset of resultswriter.Payload fields a
// phase-1 trades queue item carries, decoded independently here so this
// package doesn't need to import resultswriter for a handful of fields.
type tradesPayload struct {
	Ticker         string             `json:"ticker"`
	StrategyName   string             `json:"strategy_name"`
	HashID         string             `json:"hash_id"`
	PortfolioStage string             `json:"portfolio_stage"`
	Datetime       []int64            `json:"datetime"`
	Columns        map[string][]any   `json:"columns"`
}

// QueueExecutionStore implements ExecutionStore against the shared trades
// queue, reading back phase1-tagged trade payloads the backtest processor
// published.
type QueueExecutionStore struct {
	Broker *queuebroker.Broker
}

// NewQueueExecutionStore builds a QueueExecutionStore over broker.
func NewQueueExecutionStore(broker *queuebroker.Broker) *QueueExecutionStore {
	return &QueueExecutionStore{Broker: broker}
}

// PhaseOneExecutions implements ExecutionStore by decoding every
// phase1-tagged trades-queue item for hashID into individual Executions.
func (s *QueueExecutionStore) PhaseOneExecutions(hashID string) ([]Execution, error) {
	ids, err := s.Broker.Peek(queuebroker.TradesQueue, 10000)
	if err != nil {
		return nil, fmt.Errorf("peek trades queue: %w", err)
	}

	var out []Execution
	for _, id := range ids {
		data, ok, err := s.Broker.GetData(queuebroker.TradesQueue, id)
		if err != nil || !ok {
			continue
		}
		var p tradesPayload
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		if p.PortfolioStage != "phase1" || p.HashID != hashID {
			continue
		}
		out = append(out, payloadToExecutions(p)...)
	}
	return out, nil
}

func payloadToExecutions(p tradesPayload) []Execution {
	shares := p.Columns["shares"]
	prices := p.Columns["exit_price"]
	sides := p.Columns["side"]

	n := len(p.Datetime)
	execs := make([]Execution, 0, n)
	for i := 0; i < n; i++ {
		e := Execution{Ticker: p.Ticker, Strategy: p.StrategyName, HashID: p.HashID, Time: p.Datetime[i] / 1000}
		if i < len(shares) {
			e.Shares, _ = toFloat(shares[i])
		}
		if i < len(prices) {
			e.Price, _ = toFloat(prices[i])
		}
		if i < len(sides) {
			if s, ok := sides[i].(string); ok {
				e.Side = s
			}
		}
		execs = append(execs, e)
	}
	return execs
}
