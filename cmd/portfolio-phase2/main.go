// Command portfolio-phase2 applies account-level portfolio rules to the
// already-approved per-strategy executions of one or more backtest hashes,
// and re-enqueues the survivors tagged for final consumption.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"backtestcore/config"
	"backtestcore/logging"
	"backtestcore/ohlcvcache"
	"backtestcore/portfolio"
	"backtestcore/queuebroker"
)

// hashList collects repeated --hash flags.
type hashList []string

func (h *hashList) String() string { return strings.Join(*h, ",") }
func (h *hashList) Set(v string) error {
	*h = append(*h, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	logger := logging.Default().With("component", "portfolio_phase2_cli")
	config.LoadDotEnv("")

	var hashes hashList
	flag.Var(&hashes, "hash", "backtest hash id to include (repeatable, required)")
	portfolioManagerConfig := flag.String("portfolio-manager", "", "portfolio manager YAML config path (required)")
	database := flag.String("database", "", "results database file (default: results database)")
	ohlcvDatabase := flag.String("ohlcv-database", "ohlcv", "ohlcv cache database file")
	initialAccountValue := flag.Float64("initial-account-value", 10000.0, "initial account value")
	flag.Parse()

	if len(hashes) == 0 || *portfolioManagerConfig == "" {
		flag.Usage()
		logger.Error("--hash and --portfolio-manager are required")
		return 1
	}

	dbPath := *database
	if dbPath == "" {
		dbPath = config.ResultsDatabase() + ".db"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		logger.Errorf("open database %s: %v", dbPath, err)
		return 1
	}
	defer db.Close()

	broker, err := queuebroker.Open(db)
	if err != nil {
		logger.Errorf("open queue broker: %v", err)
		return 1
	}

	ohlcvDB, err := sql.Open("sqlite", *ohlcvDatabase+".db")
	if err != nil {
		logger.Errorf("open ohlcv database %s: %v", *ohlcvDatabase, err)
		return 1
	}
	defer ohlcvDB.Close()

	cache, err := ohlcvcache.Open(ohlcvDB)
	if err != nil {
		logger.Errorf("open ohlcv cache: %v", err)
		return 1
	}

	pipeline, err := portfolio.LoadConfig(*portfolioManagerConfig)
	if err != nil {
		logger.Errorf("load portfolio manager config: %v", err)
		return 1
	}

	store := portfolio.NewQueueExecutionStore(broker)
	runner := portfolio.NewRunner(broker, cache, store, nil, pipeline, *initialAccountValue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("waiting for phase-1 drain for hashes %v", []string(hashes))
	if err := runner.WaitForPhase1Drain(ctx, hashes); err != nil {
		if ctx.Err() != nil {
			logger.Info("portfolio phase interrupted by user")
			runner.ClearCachesOnInterrupt(hashes)
			return 1
		}
		logger.Errorf("wait for phase1 drain: %v", err)
		return 1
	}

	var allExecutions []portfolio.Execution
	for _, h := range hashes {
		execs, err := runner.WaitForExecutions(ctx, h)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("portfolio phase interrupted by user")
				runner.ClearCachesOnInterrupt(hashes)
				return 1
			}
			logger.Errorf("wait for phase1 executions for hash %s: %v", h, err)
			return 1
		}
		allExecutions = append(allExecutions, execs...)
	}

	if len(allExecutions) == 0 {
		logger.Warn("no phase-1 executions found for given hashes")
		return 0
	}

	approved := pipeline.Apply(allExecutions, *initialAccountValue)
	if len(approved) == 0 {
		logger.Warn("portfolio manager filtered all executions")
		return 0
	}

	if err := runner.ReenqueueApproved(approved); err != nil {
		logger.Errorf("reenqueue approved executions: %v", err)
		return 1
	}

	total := len(allExecutions)
	filtered := total - len(approved)
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("Portfolio Manager Phase-2 Summary")
	fmt.Println(strings.Repeat("=", 50))
	if len(hashes) == 1 {
		fmt.Printf("Hash ID: %s\n", hashes[0])
	} else {
		fmt.Printf("Hash IDs: %s\n", strings.Join(hashes, ", "))
	}
	fmt.Printf("Total Signals: %d\n", total)
	fmt.Printf("Signals Sent: %d\n", len(approved))
	fmt.Printf("Signals Filtered: %d\n", filtered)
	fmt.Println(strings.Repeat("=", 50))

	logger.Info("portfolio phase-2 complete")
	return 0
}
