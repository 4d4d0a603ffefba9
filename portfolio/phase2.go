package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backtestcore/logging"
	"backtestcore/ohlcvcache"
	"backtestcore/queuebroker"
)

const (
	phase1QueueTimeout   = 60 * time.Second
	phase1QueryTimeout   = 30 * time.Second
	phase1QueryInterval  = 2 * time.Second
	phase1QueuePoll      = 500 * time.Millisecond
)

// ExecutionStore is the results-database read side phase-2 polls for
// phase-1 executions. QueueExecutionStore implements it over the trades
// queue.
type ExecutionStore interface {
	PhaseOneExecutions(hashID string) ([]Execution, error)
}

// OHLCVSource is queried to fill an OHLCV cache miss during phase-2.
type OHLCVSource interface {
	Load(ticker string, start, end time.Time) (ohlcvcache.Frame, error)
}

// Runner orchestrates a phase-2 pass: waiting for phase-1 completion,
// loading OHLCV, applying the portfolio pipeline, and re-enqueuing
// approved executions.
type Runner struct {
	Broker      *queuebroker.Broker
	Cache       *ohlcvcache.Cache
	Store       ExecutionStore
	OHLCV       OHLCVSource
	Pipeline    *Pipeline
	AccountValue float64
	logger      logging.Logger
}

// NewRunner builds a Runner.
func NewRunner(broker *queuebroker.Broker, cache *ohlcvcache.Cache, store ExecutionStore, ohlcv OHLCVSource, pipeline *Pipeline, accountValue float64) *Runner {
	return &Runner{
		Broker: broker, Cache: cache, Store: store, OHLCV: ohlcv, Pipeline: pipeline, AccountValue: accountValue,
		logger: logging.Default().With("component", "portfolio_phase2"),
	}
}

// WaitForPhase1Drain polls the trades queue until every phase1-tagged item
// for hashes has been removed (i.e. consumed downstream), or phase1QueueTimeout
// elapses.
func (r *Runner) WaitForPhase1Drain(ctx context.Context, hashes []string) error {
	deadline := time.Now().Add(phase1QueueTimeout)
	for time.Now().Before(deadline) {
		pending, err := r.countPendingPhase1(hashes)
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(phase1QueuePoll):
		}
	}
	r.logger.Warnf("timed out after %s waiting for phase1 queue to drain", phase1QueueTimeout)
	return nil
}

func (r *Runner) countPendingPhase1(hashes []string) (int, error) {
	ids, err := r.Broker.Peek(queuebroker.TradesQueue, 10000)
	if err != nil {
		return 0, fmt.Errorf("peek trades queue: %w", err)
	}
	wanted := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		wanted[h] = true
	}
	count := 0
	for _, id := range ids {
		data, ok, err := r.Broker.GetData(queuebroker.TradesQueue, id)
		if err != nil || !ok {
			continue
		}
		var tagged struct {
			HashID         string `json:"hash_id"`
			PortfolioStage string `json:"portfolio_stage"`
		}
		if json.Unmarshal(data, &tagged) != nil {
			continue
		}
		if tagged.PortfolioStage == "phase1" && wanted[tagged.HashID] {
			count++
		}
	}
	return count, nil
}

// WaitForExecutions polls Store for phase-1 executions for hashID, retrying
// every phase1QueryInterval up to phase1QueryTimeout.
func (r *Runner) WaitForExecutions(ctx context.Context, hashID string) ([]Execution, error) {
	deadline := time.Now().Add(phase1QueryTimeout)
	for {
		execs, err := r.Store.PhaseOneExecutions(hashID)
		if err != nil {
			return nil, fmt.Errorf("query phase1 executions for %s: %w", hashID, err)
		}
		if len(execs) > 0 {
			return execs, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(phase1QueryInterval):
		}
	}
}

// LoadOHLCV returns OHLCV for tickers, cache-first by hashID, falling back
// to OHLCV and populating the cache on a miss.
func (r *Runner) LoadOHLCV(hashID string, tickers []string, start, end time.Time) map[string]ohlcvcache.Frame {
	out := make(map[string]ohlcvcache.Frame, len(tickers))
	for _, ticker := range tickers {
		if frame, ok, err := r.Cache.Load(hashID, ticker); err == nil && ok {
			out[ticker] = frame
			continue
		}
		if r.OHLCV == nil {
			continue
		}
		frame, err := r.OHLCV.Load(ticker, start, end)
		if err != nil {
			r.logger.Warnf("failed to load ohlcv for %s: %v", ticker, err)
			continue
		}
		_ = r.Cache.Store(hashID, ticker, frame)
		out[ticker] = frame
	}
	return out
}

// ReenqueueApproved publishes approved executions with portfolio_stage
// "final", grouped by (strategy, ticker, hash_id).
func (r *Runner) ReenqueueApproved(approved []Execution) error {
	type groupKey struct{ strategy, ticker, hashID string }
	groups := make(map[groupKey][]Execution)
	for _, e := range approved {
		k := groupKey{e.Strategy, e.Ticker, e.HashID}
		groups[k] = append(groups[k], e)
	}

	for k, execs := range groups {
		payload := struct {
			Strategy       string      `json:"strategy_name"`
			Ticker         string      `json:"ticker"`
			HashID         string      `json:"hash_id"`
			PortfolioStage string      `json:"portfolio_stage"`
			Executions     []Execution `json:"executions"`
		}{Strategy: k.strategy, Ticker: k.ticker, HashID: k.hashID, PortfolioStage: "final", Executions: execs}

		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal final executions for %s/%s: %w", k.strategy, k.ticker, err)
		}
		itemID := fmt.Sprintf("%s_%s_%s_final", k.ticker, k.strategy, k.hashID)
		if err := r.Broker.Enqueue(queuebroker.TradesQueue, itemID, data); err != nil {
			return fmt.Errorf("enqueue final executions for %s/%s: %w", k.strategy, k.ticker, err)
		}
	}
	return nil
}

// ClearCachesOnInterrupt evicts every cache entry for hashes, called when a
// phase-2 run is interrupted (Ctrl-C) so a partial run doesn't leave stale
// cache entries behind.
func (r *Runner) ClearCachesOnInterrupt(hashes []string) {
	for _, h := range hashes {
		if _, err := r.Cache.ClearForHash(h); err != nil {
			r.logger.Warnf("failed to clear cache for hash %s: %v", h, err)
		}
	}
}
