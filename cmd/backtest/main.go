// Command backtest drives a single backtest run across a ticker list,
// optionally exposing the HTTP status surface for the duration of the run.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"backtestcore/config"
	"backtestcore/execution"
	"backtestcore/filters"
	"backtestcore/httpapi"
	"backtestcore/logging"
	"backtestcore/market"
	"backtestcore/metrics"
	"backtestcore/ohlcvcache"
	"backtestcore/positionrules"
	"backtestcore/processor"
	"backtestcore/queuebroker"
	"backtestcore/resultswriter"
	"backtestcore/strategy"
)

func main() {
	if err := run(); err != nil {
		logging.Default().Errorf("backtest failed: %v", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadDotEnv("")

	var (
		tickers       = flag.String("tickers", "", "comma-separated ticker list (required)")
		startStr      = flag.String("start", "", "start date, YYYY-MM-DD (required)")
		endStr        = flag.String("end", "", "end date, YYYY-MM-DD (required)")
		strategyName  = flag.String("strategy", "sma_cross", "strategy name")
		fast          = flag.Int("fast", 10, "sma_cross fast window")
		slow          = flag.Int("slow", 20, "sma_cross slow window")
		stepFreq      = flag.String("step-frequency", "daily", "auto/daily/hourly/minute/second")
		capitalPerTrade = flag.Float64("capital-per-trade", 10000, "fixed capital committed per trade")
		riskFreeRate  = flag.Float64("risk-free-rate", 0.0, "annual risk-free rate for Sharpe")
		slippageBps   = flag.Float64("slippage-bps", 0, "execution slippage in basis points")
		commission    = flag.Float64("commission-per-share", 0, "commission per share")
		fillDelayMin  = flag.Float64("fill-delay-minutes", 0, "minutes to delay fill after signal")
		filterConfig  = flag.String("filter-config", "", "path to a filter pipeline YAML config")
		rulesConfig   = flag.String("position-rules-config", "", "path to a position rules YAML config")
		database      = flag.String("database", "", "results database file (default: <results-db>.db)")
		parallel      = flag.Bool("parallel", false, "process tickers across a worker pool")
		maxProcesses  = flag.Int("max-processes", 0, "worker pool size (0: runtime.NumCPU()-2)")
		serve         = flag.Bool("serve", false, "expose the HTTP status surface while the backtest runs")
		addr          = flag.String("addr", ":8080", "address for --serve")
	)
	flag.Parse()

	if *tickers == "" || *startStr == "" || *endStr == "" {
		flag.Usage()
		return fmt.Errorf("--tickers, --start, and --end are required")
	}

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		return fmt.Errorf("parse --end: %w", err)
	}

	metrics.Init()
	if *serve {
		srv := httpapi.New()
		go func() {
			if err := srv.Run(*addr); err != nil {
				logging.Default().Errorf("http server exited: %v", err)
			}
		}()
	}

	dbPath := *database
	if dbPath == "" {
		dbPath = config.ResultsDatabase() + ".db"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()

	cache, err := ohlcvcache.Open(db)
	if err != nil {
		return fmt.Errorf("open ohlcv cache: %w", err)
	}
	broker, err := queuebroker.Open(db)
	if err != nil {
		return fmt.Errorf("open queue broker: %w", err)
	}
	writer := resultswriter.New(broker)

	var strat processor.Strategy
	switch *strategyName {
	case "sma_cross":
		strat = strategy.SMACross{FastWindow: *fast, SlowWindow: *slow}
	default:
		return fmt.Errorf("unknown strategy %q", *strategyName)
	}

	var filterPipeline *filters.Pipeline
	if *filterConfig != "" {
		filterPipeline, err = filters.LoadConfig(*filterConfig)
		if err != nil {
			return fmt.Errorf("load filter config: %w", err)
		}
	}

	var rulesPipeline *positionrules.Pipeline
	if *rulesConfig != "" {
		rulesPipeline, err = positionrules.LoadConfig(*rulesConfig)
		if err != nil {
			return fmt.Errorf("load position rules config: %w", err)
		}
	}

	cfg := processor.Config{
		Strategy:           strat,
		Tickers:            splitTickers(*tickers),
		Start:              start,
		End:                end,
		StepFrequency:      *stepFreq,
		CapitalPerTrade:    *capitalPerTrade,
		RiskFreeRate:       *riskFreeRate,
		StrategyParams:     map[string]any{"fast": *fast, "slow": *slow},
		FilterPipeline:     filterPipeline,
		PositionRules:      rulesPipeline,
		UseMultiprocessing: *parallel,
		MaxProcesses:       *maxProcesses,
		DataSource:         market.NewAlpacaDataSource("1d"),
		Cache:              cache,
		Writer:             writer,
		Execution: execution.Config{
			SlippageBps:        *slippageBps,
			CommissionPerShare: *commission,
			FillDelayMinutes:   *fillDelayMin,
		},
	}

	summary, err := processor.Run(cfg)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	fmt.Printf("hash_id=%s total=%d successful=%d failed=%d\n",
		summary.HashID, summary.Total, summary.Successful, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d tickers failed", summary.Failed, summary.Total)
	}
	return nil
}

func splitTickers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}
