package ohlcvcache

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	c, err := Open(db, opts...)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	return c
}

func sampleFrame(ticker string, bars int) Frame {
	f := Frame{Ticker: ticker}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < bars; i++ {
		f.Bars = append(f.Bars, Bar{
			Time: base.Add(time.Duration(i) * 24 * time.Hour),
			Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
		})
	}
	return f
}

func TestStoreLoadRoundTrip(t *testing.T) {
	c := openTestCache(t)
	frame := sampleFrame("AAPL", 5)

	if err := c.Store("hash1", "AAPL", frame); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok, err := c.Load("hash1", "AAPL")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Bars) != len(frame.Bars) {
		t.Fatalf("expected %d bars, got %d", len(frame.Bars), len(got.Bars))
	}
	if !got.Bars[0].Time.Equal(frame.Bars[0].Time) {
		t.Fatalf("bar timestamp did not round-trip: %v vs %v", got.Bars[0].Time, frame.Bars[0].Time)
	}
}

func TestLoadMissReturnsNoError(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Load("nope", "AAPL")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestClearForHashEvictsOnlyThatHash(t *testing.T) {
	c := openTestCache(t)
	_ = c.Store("h1", "AAPL", sampleFrame("AAPL", 3))
	_ = c.Store("h1", "MSFT", sampleFrame("MSFT", 3))
	_ = c.Store("h2", "AAPL", sampleFrame("AAPL", 3))

	freed, err := c.ClearForHash("h1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if freed <= 0 {
		t.Fatal("expected positive freed byte count")
	}

	if _, ok, _ := c.Load("h1", "AAPL"); ok {
		t.Fatal("h1/AAPL should be evicted")
	}
	if _, ok, _ := c.Load("h1", "MSFT"); ok {
		t.Fatal("h1/MSFT should be evicted")
	}
	if _, ok, _ := c.Load("h2", "AAPL"); !ok {
		t.Fatal("h2/AAPL must survive clearing h1")
	}
}

func TestStoreRefusedWhenOverBudgetDoesNotEvictOthers(t *testing.T) {
	frame := sampleFrame("AAPL", 50)
	blob, err := serializeFrame(frame)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	budget := int64(len(blob)) + 10

	c := openTestCache(t, WithMaxBytes(budget))

	if err := c.Store("h1", "AAPL", frame); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, ok, _ := c.Load("h1", "AAPL"); !ok {
		t.Fatal("first store should have been admitted")
	}

	// A second, unrelated store that would exceed the budget must be
	// refused without touching the first hash's entry.
	if err := c.Store("h2", "MSFT", sampleFrame("MSFT", 50)); err != nil {
		t.Fatalf("store should not return an error on refusal: %v", err)
	}
	if _, ok, _ := c.Load("h2", "MSFT"); ok {
		t.Fatal("over-budget store should have been refused")
	}
	if _, ok, _ := c.Load("h1", "AAPL"); !ok {
		t.Fatal("refusing an unrelated store must not evict existing entries")
	}
}

func TestUsageNeverNegative(t *testing.T) {
	c := openTestCache(t)
	_, _ = c.ClearForHash("never-stored")
	usage, err := c.UsageBytes()
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage < 0 {
		t.Fatalf("usage must never go negative, got %d", usage)
	}
}

func TestExpiredEntryIsEvictedOnLoad(t *testing.T) {
	c := openTestCache(t, WithTTL(-time.Second))
	_ = c.Store("h1", "AAPL", sampleFrame("AAPL", 2))

	if _, ok, _ := c.Load("h1", "AAPL"); ok {
		t.Fatal("expired entry should be treated as a miss")
	}
	usage, _ := c.UsageBytes()
	if usage != 0 {
		t.Fatalf("expired entry should free its bytes, usage=%d", usage)
	}
}
