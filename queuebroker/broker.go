// Package queuebroker implements the named, durable work queues that
// connect backtest workers to downstream consumers (results writers,
// portfolio phase-2). Enqueue is idempotent per (queue, item id); reads are
// strict FIFO by insertion order.
package queuebroker

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"backtestcore/logging"
	"backtestcore/metrics"
)

// Well-known queue names, mirroring the fixed queue set the results writer
// and portfolio phase-2 processor publish to and consume from.
const (
	TradesQueue   = "backtest_trades_queue"
	MetricsQueue  = "backtest_metrics_queue"
	StudiesQueue  = "backtest_studies_queue"
	DefaultTTL    = 3600 * time.Second
)

// Broker is a durable, FIFO, idempotent queue store.
type Broker struct {
	db     *sql.DB
	ttl    time.Duration
	logger logging.Logger
}

// Option configures a Broker at construction time.
type Option func(*Broker)

// WithTTL overrides the default item time-to-live.
func WithTTL(d time.Duration) Option { return func(b *Broker) { b.ttl = d } }

// WithLogger overrides the default logger.
func WithLogger(l logging.Logger) Option { return func(b *Broker) { b.logger = l } }

// Open creates (or reuses) the broker schema on db.
func Open(db *sql.DB, opts ...Option) (*Broker, error) {
	b := &Broker{
		db:     db,
		ttl:    DefaultTTL,
		logger: logging.Default().With("component", "queue_broker"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.initSchema(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broker) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS queue_items (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			queue TEXT NOT NULL,
			item_id TEXT NOT NULL,
			data TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			UNIQUE(queue, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_items_queue_seq ON queue_items(queue, seq)`,
	}
	for _, s := range stmts {
		if _, err := b.db.Exec(s); err != nil {
			return fmt.Errorf("init queue broker schema: %w", err)
		}
	}
	return nil
}

// Enqueue inserts data under (queue, itemID). A second Enqueue for the same
// (queue, itemID) overwrites the payload and refreshes the TTL in place
// rather than creating a duplicate entry or erroring — re-publishing an
// already-queued result must be a no-op from the consumer's perspective.
func (b *Broker) Enqueue(queue, itemID string, data json.RawMessage) error {
	expiresAt := time.Now().Add(b.ttl).Unix()
	_, err := b.db.Exec(
		`INSERT INTO queue_items (queue, item_id, data, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(queue, item_id) DO UPDATE SET data=excluded.data, expires_at=excluded.expires_at`,
		queue, itemID, string(data), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue %s/%s: %w", queue, itemID, err)
	}
	if n, err := b.Size(queue); err == nil {
		metrics.RecordQueueDepth(queue, n)
	}
	return nil
}

// Peek returns up to n item ids from queue in FIFO (insertion) order,
// skipping expired items without removing them (expiry is swept by
// Purge).
func (b *Broker) Peek(queue string, n int) ([]string, error) {
	rows, err := b.db.Query(
		`SELECT item_id FROM queue_items WHERE queue = ? AND expires_at >= ? ORDER BY seq ASC LIMIT ?`,
		queue, time.Now().Unix(), n,
	)
	if err != nil {
		return nil, fmt.Errorf("peek %s: %w", queue, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan peek row for %s: %w", queue, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetData returns the raw payload for (queue, itemID), or false if absent
// or expired.
func (b *Broker) GetData(queue, itemID string) (json.RawMessage, bool, error) {
	var data string
	var expiresAt int64
	err := b.db.QueryRow(
		`SELECT data, expires_at FROM queue_items WHERE queue = ? AND item_id = ?`, queue, itemID,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get data %s/%s: %w", queue, itemID, err)
	}
	if time.Now().Unix() > expiresAt {
		return nil, false, nil
	}
	return json.RawMessage(data), true, nil
}

// Size returns the number of non-expired items currently queued.
func (b *Broker) Size(queue string) (int, error) {
	var n int
	err := b.db.QueryRow(
		`SELECT COUNT(*) FROM queue_items WHERE queue = ? AND expires_at >= ?`, queue, time.Now().Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", queue, err)
	}
	return n, nil
}

// Remove deletes a single item, used once a consumer has durably recorded
// it downstream.
func (b *Broker) Remove(queue, itemID string) error {
	if _, err := b.db.Exec(`DELETE FROM queue_items WHERE queue = ? AND item_id = ?`, queue, itemID); err != nil {
		return fmt.Errorf("remove %s/%s: %w", queue, itemID, err)
	}
	if n, err := b.Size(queue); err == nil {
		metrics.RecordQueueDepth(queue, n)
	}
	return nil
}

// Purge sweeps expired items across all queues and returns how many were
// removed.
func (b *Broker) Purge() (int64, error) {
	res, err := b.db.Exec(`DELETE FROM queue_items WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge expired queue items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged queue items: %w", err)
	}
	if n > 0 {
		b.logger.Infof("purged %d expired queue items", n)
	}
	return n, nil
}
