package resultswriter

import (
	"database/sql"
	"testing"

	"backtestcore/queuebroker"

	_ "modernc.org/sqlite"
)

func openTestWriter(t *testing.T) (*Writer, *queuebroker.Broker) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	broker, err := queuebroker.Open(db)
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	return New(broker), broker
}

func TestWriteTradesRejectsMismatchedColumnLength(t *testing.T) {
	w, _ := openTestWriter(t)
	p := Payload{
		Ticker: "AAPL", StrategyName: "sma_cross",
		Datetime: []int64{1000, 2000},
		Columns:  map[string][]any{"price": {100.0}},
	}
	if err := w.WriteTrades(p); err == nil {
		t.Fatal("expected validation error for mismatched column length")
	}
}

func TestWriteTradesRejectsNegativeDatetime(t *testing.T) {
	w, _ := openTestWriter(t)
	p := Payload{
		Ticker: "AAPL", StrategyName: "sma_cross",
		Datetime: []int64{-1},
	}
	if err := w.WriteTrades(p); err == nil {
		t.Fatal("expected validation error for negative datetime")
	}
}

func TestWriteMetricsIsIdempotentViaItemID(t *testing.T) {
	w, broker := openTestWriter(t)
	p := Payload{
		Ticker: "AAPL", StrategyName: "sma_cross", BacktestID: "bt1",
		Datetime: []int64{1000},
		Columns:  map[string][]any{"sharpe": {1.2}},
	}
	if err := w.WriteMetrics(p); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteMetrics(p); err != nil {
		t.Fatalf("re-write: %v", err)
	}
	size, err := broker.Size(queuebroker.MetricsQueue)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 1 {
		t.Fatalf("expected idempotent re-enqueue to leave 1 item, got %d", size)
	}
}

func TestSanitizeColumnsDropsAllNilAndFillsPartial(t *testing.T) {
	cols := map[string][]any{
		"all_nil":    {nil, nil},
		"partial_str": {"a", nil},
		"partial_num": {1.0, nil},
	}
	out := sanitizeColumns(cols)
	if _, ok := out["all_nil"]; ok {
		t.Fatal("entirely-nil column must be dropped")
	}
	if out["partial_str"][1] != "" {
		t.Fatalf("expected nil string cell filled with empty string, got %v", out["partial_str"][1])
	}
	if out["partial_num"][1] != 0.0 {
		t.Fatalf("expected nil numeric cell filled with 0, got %v", out["partial_num"][1])
	}
}
