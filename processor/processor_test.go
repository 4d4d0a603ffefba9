package processor

import (
	"testing"
	"time"

	"backtestcore/ohlcvcache"
	"backtestcore/positionmanager"
)

type fakeStrategy struct{ name string }

func (f fakeStrategy) Name() string { return f.name }

func (f fakeStrategy) GenerateSignals(ticker string, frame ohlcvcache.Frame, params map[string]any) ([]positionmanager.Signal, error) {
	if len(frame.Bars) < 2 {
		return nil, nil
	}
	return []positionmanager.Signal{
		{Ticker: ticker, Time: frame.Bars[0].Time.Unix(), Direction: "buy", Fields: map[string]float64{"price": frame.Bars[0].Close}},
		{Ticker: ticker, Time: frame.Bars[len(frame.Bars)-1].Time.Unix(), Direction: "sell", Fields: map[string]float64{"price": frame.Bars[len(frame.Bars)-1].Close}},
	}, nil
}

type fakeDataSource struct{ bars int }

func (f fakeDataSource) Load(ticker string, start, end time.Time) (ohlcvcache.Frame, error) {
	frame := ohlcvcache.Frame{Ticker: ticker}
	for i := 0; i < f.bars; i++ {
		frame.Bars = append(frame.Bars, ohlcvcache.Bar{
			Time: start.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100 + float64(i),
		})
	}
	return frame, nil
}

func baseConfig() Config {
	return Config{
		Strategy:        fakeStrategy{name: "sma_cross"},
		Tickers:         []string{"AAPL"},
		Start:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		StepFrequency:   "daily",
		CapitalPerTrade: 10000,
		RiskFreeRate:    0.04,
		DataSource:      fakeDataSource{bars: 10},
	}
}

func TestHashDeterminismAcrossDifferentTickersAndDates(t *testing.T) {
	c1 := baseConfig()
	c1.Tickers = []string{"AAPL"}
	c1.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c2 := baseConfig()
	c2.Tickers = []string{"MSFT", "GOOG"}
	c2.Start = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	h1, err := computeHash(c1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := computeHash(c2)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash must be stable across ticker set and date range changes: %s vs %s", h1, h2)
	}
}

func TestRunSequentialReportsSuccess(t *testing.T) {
	cfg := baseConfig()
	summary, err := Run(cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 1 || summary.Successful != 1 || summary.Failed != 0 {
		t.Fatalf("expected 1/1/0, got %+v", summary)
	}
}

func TestRunParallelReportsAllTickersSuccessful(t *testing.T) {
	cfg := baseConfig()
	cfg.Tickers = []string{"AAPL", "MSFT", "GOOG"}
	cfg.UseMultiprocessing = true
	cfg.MaxProcesses = 2

	summary, err := Run(cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 3 || summary.Successful != 3 {
		t.Fatalf("expected all 3 tickers to succeed, got %+v", summary)
	}
}
