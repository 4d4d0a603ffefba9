package resultswriter

import (
	"encoding/json"
	"fmt"

	"backtestcore/logging"
	"backtestcore/queuebroker"
)

// Writer validates and publishes result payloads to the three fixed queue
// names (trades, metrics, studies); the backtest processor publishes through
// it and portfolio phase-2 reads the trades queue.
type Writer struct {
	broker *queuebroker.Broker
	logger logging.Logger
}

// New builds a Writer backed by broker.
func New(broker *queuebroker.Broker) *Writer {
	return &Writer{broker: broker, logger: logging.Default().With("component", "results_writer")}
}

// WriteTrades validates and enqueues a trades payload.
func (w *Writer) WriteTrades(p Payload) error {
	return w.write(p, queuebroker.TradesQueue, "")
}

// WriteMetrics validates and enqueues a metrics payload.
func (w *Writer) WriteMetrics(p Payload) error {
	return w.write(p, queuebroker.MetricsQueue, "_metrics")
}

// WriteStudies validates and enqueues a studies payload.
func (w *Writer) WriteStudies(p Payload) error {
	return w.write(p, queuebroker.StudiesQueue, "_studies")
}

func (w *Writer) write(p Payload, queue, suffix string) error {
	p.Columns = sanitizeColumns(p.Columns)
	if err := p.Validate(); err != nil {
		return fmt.Errorf("write to %s: %w", queue, err)
	}

	backtestID := p.BacktestID
	if backtestID == "" {
		backtestID = "no_id"
	}
	itemID := fmt.Sprintf("%s_%s_%s%s", p.Ticker, p.StrategyName, backtestID, suffix)

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", itemID, err)
	}

	if err := w.broker.Enqueue(queue, itemID, data); err != nil {
		return fmt.Errorf("enqueue %s to %s: %w", itemID, queue, err)
	}
	w.logger.Infof("wrote %s to %s (%d rows)", itemID, queue, len(p.Datetime))
	return nil
}
