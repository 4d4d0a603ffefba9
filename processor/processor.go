package processor

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"backtestcore/execution"
	"backtestcore/filters"
	"backtestcore/hashid"
	"backtestcore/journal"
	"backtestcore/logging"
	obsmetrics "backtestcore/metrics"
	"backtestcore/ohlcvcache"
	"backtestcore/positionmanager"
	"backtestcore/positionrules"
	"backtestcore/resultswriter"
)

// Strategy produces trading signals for a ticker given its OHLCV history.
type Strategy interface {
	Name() string
	GenerateSignals(ticker string, frame ohlcvcache.Frame, params map[string]any) ([]positionmanager.Signal, error)
}

// DataSource loads raw OHLCV history for a ticker over a date range, used
// to fill a cache miss.
type DataSource interface {
	Load(ticker string, start, end time.Time) (ohlcvcache.Frame, error)
}

// Config is everything a backtest run needs.
type Config struct {
	Strategy           Strategy
	Tickers            []string
	Start, End         time.Time
	StepFrequency      string
	Execution          execution.Config
	CapitalPerTrade    float64
	RiskFreeRate       float64
	StrategyParams     map[string]any
	FilterPipeline     *filters.Pipeline
	PositionRules      *positionrules.Pipeline
	UseMultiprocessing bool
	MaxProcesses       int
	DataSource         DataSource
	Cache              *ohlcvcache.Cache
	Writer             *resultswriter.Writer
	BacktestID         string
}

// Summary reports the outcome of a Run across all tickers.
type Summary struct {
	HashID     string
	BacktestID string
	Total      int
	Successful int
	Failed     int
}

// Run computes the config hash, dispatches one worker per ticker
// (sequentially or across a bounded pool), and returns a summary.
func Run(cfg Config) (Summary, error) {
	logger := logging.Default().With("component", "backtest_processor")

	hash, err := computeHash(cfg)
	if err != nil {
		return Summary{}, fmt.Errorf("compute backtest hash: %w", err)
	}

	summary := Summary{HashID: hash, BacktestID: cfg.BacktestID, Total: len(cfg.Tickers)}

	results := make([]error, len(cfg.Tickers))
	if cfg.UseMultiprocessing {
		maxProcs := cfg.MaxProcesses
		if maxProcs <= 0 {
			maxProcs = maxInt(1, runtime.NumCPU()-2)
		}
		runWorkerPool(cfg, hash, results, maxProcs)
	} else {
		for i, ticker := range cfg.Tickers {
			results[i] = runWorker(cfg, hash, ticker)
		}
	}

	for i, err := range results {
		if err != nil {
			summary.Failed++
			logger.Warnf("ticker %s failed: %v", cfg.Tickers[i], err)
		} else {
			summary.Successful++
		}
	}

	logger.Infof(
		"backtest summary hash_id=%s backtest_id=%s total=%d successful=%d failed=%d",
		summary.HashID, summary.BacktestID, summary.Total, summary.Successful, summary.Failed,
	)
	return summary, nil
}

func runWorkerPool(cfg Config, hash string, results []error, maxProcs int) {
	sem := make(chan struct{}, maxProcs)
	var wg sync.WaitGroup
	for i, ticker := range cfg.Tickers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ticker string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = runWorker(cfg, hash, ticker)
		}(i, ticker)
	}
	wg.Wait()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func computeHash(cfg Config) (string, error) {
	hc := hashid.Config{
		StrategyName:    cfg.Strategy.Name(),
		StrategyParams:  cfg.StrategyParams,
		StepFrequency:   cfg.StepFrequency,
		CapitalPerTrade: cfg.CapitalPerTrade,
		RiskFreeRate:    cfg.RiskFreeRate,
		ExecutionConfig: hashid.ExecutionCfg{
			SlippageBps:        cfg.Execution.SlippageBps,
			CommissionPerShare: cfg.Execution.CommissionPerShare,
			UseLimitOrders:     cfg.Execution.UseLimitOrders,
			FillDelayMinutes:   cfg.Execution.FillDelayMinutes,
		},
	}
	return hashid.Compute(hc)
}

// runWorker processes a single ticker end to end: load OHLCV (cache-first),
// generate signals, run them through the position manager, match and cost
// trades, and publish results.
func runWorker(cfg Config, hash, ticker string) error {
	start := time.Now()
	err := runWorkerTimed(cfg, hash, ticker)
	obsmetrics.WorkerDuration.Observe(time.Since(start).Seconds())
	obsmetrics.RecordTickerResult(err == nil)
	return err
}

func runWorkerTimed(cfg Config, hash, ticker string) error {
	frame, err := loadFrame(cfg, hash, ticker)
	if err != nil {
		return fmt.Errorf("load ohlcv for %s: %w", ticker, err)
	}

	signals, err := cfg.Strategy.GenerateSignals(ticker, frame, cfg.StrategyParams)
	if err != nil {
		return fmt.Errorf("generate signals for %s: %w", ticker, err)
	}
	signals = applyFilters(cfg, ticker, signals, frame)

	pipeline := cfg.PositionRules
	if pipeline == nil {
		pipeline = positionrules.NewPipeline(nil, nil)
	}
	intents := positionmanager.Run(ticker, signals, frame, pipeline)

	journalSignals := intentsToJournalSignals(intents)
	trades := journal.FIFOMatch(ticker, cfg.Strategy.Name(), journalSignals, cfg.CapitalPerTrade, nil, frame)

	simulated := execution.Simulate(trades, frame, cfg.Execution)

	return publishResults(cfg, hash, ticker, simulated)
}

func applyFilters(cfg Config, ticker string, signals []positionmanager.Signal, frame ohlcvcache.Frame) []positionmanager.Signal {
	if cfg.FilterPipeline == nil {
		return signals
	}
	var out []positionmanager.Signal
	for _, s := range signals {
		ctx := filters.Context{
			Signal:        filters.Signal{Ticker: ticker, Time: s.Time, Fields: s.Fields},
			OHLCVByTicker: map[string]ohlcvcache.Frame{ticker: frame},
		}
		if cfg.FilterPipeline.IsValid(ctx) {
			out = append(out, s)
		}
	}
	return out
}

func intentsToJournalSignals(intents []positionmanager.Intent) []journal.Signal {
	out := make([]journal.Signal, 0, len(intents))
	for _, in := range intents {
		direction := "buy"
		if in.Action == "close" || in.Action == "scale_out" {
			direction = "sell"
		}
		out = append(out, journal.Signal{Ticker: in.Ticker, Time: in.Time, Direction: direction, Price: in.Price})
	}
	return out
}

func loadFrame(cfg Config, hash, ticker string) (ohlcvcache.Frame, error) {
	if cfg.Cache != nil {
		if frame, ok, err := cfg.Cache.Load(hash, ticker); err == nil && ok {
			return frame, nil
		}
	}
	if cfg.DataSource == nil {
		return ohlcvcache.Frame{}, nil
	}
	frame, err := cfg.DataSource.Load(ticker, cfg.Start, cfg.End)
	if err != nil {
		return ohlcvcache.Frame{}, err
	}
	if cfg.Cache != nil {
		_ = cfg.Cache.Store(hash, ticker, frame)
	}
	return frame, nil
}

func publishResults(cfg Config, hash, ticker string, trades []execution.Result) error {
	if cfg.Writer == nil || len(trades) == 0 {
		return nil
	}

	datetimes := make([]int64, len(trades))
	entryPrices := make([]any, len(trades))
	exitPrices := make([]any, len(trades))
	shares := make([]any, len(trades))
	sides := make([]any, len(trades))
	grossPnL := make([]any, len(trades))
	netPnL := make([]any, len(trades))
	for i, t := range trades {
		datetimes[i] = t.ExitTime * 1000
		entryPrices[i] = t.EntryPrice
		exitPrices[i] = t.ExitPrice
		shares[i] = t.Shares
		sides[i] = string(t.Side)
		grossPnL[i] = t.GrossPnL
		netPnL[i] = t.NetPnL
	}

	payload := resultswriter.Payload{
		Ticker: ticker, StrategyName: cfg.Strategy.Name(), BacktestID: cfg.BacktestID, HashID: hash,
		StrategyParams: cfg.StrategyParams,
		PortfolioStage: "phase1",
		Datetime:       datetimes,
		Columns: map[string][]any{
			"entry_price": entryPrices,
			"exit_price":  exitPrices,
			"shares":      shares,
			"side":        sides,
			"gross_pnl":   grossPnL,
			"net_pnl":     netPnL,
		},
	}
	if err := cfg.Writer.WriteTrades(payload); err != nil {
		return fmt.Errorf("write trades for %s: %w", ticker, err)
	}

	tradeJournal := make([]journal.Trade, len(trades))
	for i, t := range trades {
		tradeJournal[i] = t.Trade
	}
	metrics := journal.Compute(tradeJournal, cfg.CapitalPerTrade, cfg.RiskFreeRate)
	metricsPayload := resultswriter.Payload{
		Ticker: ticker, StrategyName: cfg.Strategy.Name(), BacktestID: cfg.BacktestID, HashID: hash,
		Datetime: []int64{cfg.End.UnixMilli()},
		Columns: map[string][]any{
			"max_drawdown":     {metrics.MaxDrawdown},
			"sharpe_ratio":     {metrics.SharpeRatio},
			"win_rate":         {metrics.WinRate},
			"avg_time_held":    {metrics.AvgTimeHeld},
			"total_trades":     {float64(metrics.TotalTrades)},
			"total_profit":     {metrics.TotalProfit},
			"total_profit_pct": {metrics.TotalProfitPct},
			"avg_return_pct":   {metrics.AvgReturnPct},
			"avg_efficiency":   {metrics.AvgEfficiency},
		},
	}
	if err := cfg.Writer.WriteMetrics(metricsPayload); err != nil {
		return fmt.Errorf("write metrics for %s: %w", ticker, err)
	}
	return nil
}
