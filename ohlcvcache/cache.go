// Package ohlcvcache implements a usage-bounded, TTL'd store for compressed
// OHLCV frames keyed by (hash, ticker). Admission control refuses stores
// that would exceed the configured byte budget rather than evicting other
// entries — eviction is deliberately whole-hash only (ClearForHash), so a
// backtest invalidation is always atomic.
package ohlcvcache

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"backtestcore/logging"
	"backtestcore/metrics"
)

const (
	// DefaultMaxBytes is the default hard byte budget for the cache.
	DefaultMaxBytes int64 = 1_000_000_000
	// DefaultTTL is the default time-to-live refreshed on every write and
	// successful read.
	DefaultTTL = 3600 * time.Second
)

// Cache is a compressed, usage-bounded OHLCV frame store.
type Cache struct {
	db       *sql.DB
	maxBytes int64
	ttl      time.Duration
	logger   logging.Logger

	mu sync.Mutex
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithMaxBytes overrides the default byte budget.
func WithMaxBytes(n int64) Option { return func(c *Cache) { c.maxBytes = n } }

// WithTTL overrides the default entry time-to-live.
func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }

// WithLogger overrides the default logger.
func WithLogger(l logging.Logger) Option { return func(c *Cache) { c.logger = l } }

// Open creates (or reuses) the cache schema on db and returns a ready Cache.
func Open(db *sql.DB, opts ...Option) (*Cache, error) {
	c := &Cache{
		db:       db,
		maxBytes: DefaultMaxBytes,
		ttl:      DefaultTTL,
		logger:   logging.Default().With("component", "ohlcv_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.initSchema(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ohlcv_cache (
			hash TEXT NOT NULL,
			ticker TEXT NOT NULL,
			data BLOB NOT NULL,
			size_bytes INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (hash, ticker)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ohlcv_cache_hash ON ohlcv_cache(hash)`,
		`CREATE TABLE IF NOT EXISTS ohlcv_cache_usage (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			total_bytes INTEGER NOT NULL
		)`,
		`INSERT OR IGNORE INTO ohlcv_cache_usage (id, total_bytes) VALUES (1, 0)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("init ohlcv cache schema: %w", err)
		}
	}
	return nil
}

// UsageBytes returns the current running total of cached bytes.
func (c *Cache) UsageBytes() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usageLocked()
}

func (c *Cache) usageLocked() (int64, error) {
	var total int64
	err := c.db.QueryRow(`SELECT total_bytes FROM ohlcv_cache_usage WHERE id = 1`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("read cache usage: %w", err)
	}
	return total, nil
}

func (c *Cache) addUsageLocked(delta int64) error {
	_, err := c.db.Exec(`UPDATE ohlcv_cache_usage SET total_bytes = MAX(0, total_bytes + ?) WHERE id = 1`, delta)
	if err != nil {
		return fmt.Errorf("update cache usage: %w", err)
	}
	return nil
}

// Store saves frame under (hash, ticker). If admitting it would push usage
// over the byte budget, the store is refused, a warning is logged, and no
// error is returned — the cache is strictly advisory and failures here must
// never interrupt a backtest run.
func (c *Cache) Store(hash, ticker string, frame Frame) error {
	blob, err := serializeFrame(frame)
	if err != nil {
		c.logger.Warnf("failed to serialize frame for %s/%s: %v", hash, ticker, err)
		return nil
	}
	size := int64(len(blob))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.expireLocked()

	var existingSize int64
	row := c.db.QueryRow(`SELECT size_bytes FROM ohlcv_cache WHERE hash = ? AND ticker = ?`, hash, ticker)
	hasExisting := row.Scan(&existingSize) == nil

	usage, err := c.usageLocked()
	if err != nil {
		c.logger.Warnf("cache usage read failed for %s/%s: %v", hash, ticker, err)
		return nil
	}

	projected := usage - existingSize + size
	if projected > c.maxBytes {
		c.logger.Warnf(
			"refusing ohlcv cache store for %s/%s: %d bytes would exceed budget of %d (current usage %d)",
			hash, ticker, size, c.maxBytes, usage,
		)
		return nil
	}

	expiresAt := time.Now().Add(c.ttl).Unix()
	if _, err := c.db.Exec(
		`INSERT INTO ohlcv_cache (hash, ticker, data, size_bytes, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(hash, ticker) DO UPDATE SET data=excluded.data, size_bytes=excluded.size_bytes, expires_at=excluded.expires_at`,
		hash, ticker, blob, size, expiresAt,
	); err != nil {
		c.logger.Warnf("cache write failed for %s/%s: %v", hash, ticker, err)
		return nil
	}

	delta := size - existingSize
	if !hasExisting {
		delta = size
	}
	if err := c.addUsageLocked(delta); err != nil {
		c.logger.Warnf("cache usage update failed for %s/%s: %v", hash, ticker, err)
	}
	if usage, err := c.usageLocked(); err == nil {
		metrics.RecordCacheUsage(usage)
	}
	return nil
}

// Load returns the cached frame for (hash, ticker), or (Frame{}, false, nil)
// on a miss (including an expired entry, which is lazily evicted here).
func (c *Cache) Load(hash, ticker string) (Frame, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blob []byte
	var expiresAt int64
	err := c.db.QueryRow(
		`SELECT data, expires_at FROM ohlcv_cache WHERE hash = ? AND ticker = ?`, hash, ticker,
	).Scan(&blob, &expiresAt)
	if err == sql.ErrNoRows {
		metrics.CacheMissesTotal.Inc()
		return Frame{}, false, nil
	}
	if err != nil {
		c.logger.Warnf("cache read failed for %s/%s: %v", hash, ticker, err)
		metrics.CacheMissesTotal.Inc()
		return Frame{}, false, nil
	}

	if time.Now().Unix() > expiresAt {
		c.evictRowLocked(hash, ticker)
		metrics.CacheMissesTotal.Inc()
		return Frame{}, false, nil
	}

	frame, err := deserializeFrame(blob)
	if err != nil {
		c.logger.Warnf("cache decode failed for %s/%s: %v", hash, ticker, err)
		metrics.CacheMissesTotal.Inc()
		return Frame{}, false, nil
	}
	metrics.CacheHitsTotal.Inc()

	newExpiry := time.Now().Add(c.ttl).Unix()
	if _, err := c.db.Exec(`UPDATE ohlcv_cache SET expires_at = ? WHERE hash = ? AND ticker = ?`, newExpiry, hash, ticker); err != nil {
		c.logger.Warnf("cache TTL refresh failed for %s/%s: %v", hash, ticker, err)
	}

	return frame, true, nil
}

// ClearForHash evicts every entry for hash and returns the number of bytes
// freed. It is the only supported eviction path: whole-hash, atomic.
func (c *Cache) ClearForHash(hash string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var freed sql.NullInt64
	if err := c.db.QueryRow(`SELECT SUM(size_bytes) FROM ohlcv_cache WHERE hash = ?`, hash).Scan(&freed); err != nil {
		return 0, fmt.Errorf("sum cache bytes for hash %s: %w", hash, err)
	}
	if !freed.Valid {
		return 0, nil
	}

	if _, err := c.db.Exec(`DELETE FROM ohlcv_cache WHERE hash = ?`, hash); err != nil {
		return 0, fmt.Errorf("clear cache for hash %s: %w", hash, err)
	}
	if err := c.addUsageLocked(-freed.Int64); err != nil {
		return 0, err
	}
	if usage, err := c.usageLocked(); err == nil {
		metrics.RecordCacheUsage(usage)
	}
	return freed.Int64, nil
}

// expireLocked lazily sweeps expired rows and corrects usage. Callers must
// hold c.mu.
func (c *Cache) expireLocked() {
	rows, err := c.db.Query(`SELECT hash, ticker, size_bytes FROM ohlcv_cache WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return
	}
	type key struct {
		hash, ticker string
		size         int64
	}
	var expired []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.hash, &k.ticker, &k.size); err == nil {
			expired = append(expired, k)
		}
	}
	rows.Close()

	for _, k := range expired {
		c.evictRowLocked(k.hash, k.ticker)
	}
}

func (c *Cache) evictRowLocked(hash, ticker string) {
	var size int64
	if err := c.db.QueryRow(`SELECT size_bytes FROM ohlcv_cache WHERE hash = ? AND ticker = ?`, hash, ticker).Scan(&size); err != nil {
		return
	}
	if _, err := c.db.Exec(`DELETE FROM ohlcv_cache WHERE hash = ? AND ticker = ?`, hash, ticker); err != nil {
		return
	}
	_ = c.addUsageLocked(-size)
}
