// Package worker holds the background processes run by the worker
// binary: audit fan-out and audit retention.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/messaging"
	"github.com/gilliankerr/KoNote-sub000/pkg/metrics"
)

// AuditOutboxWorker fans audit records out to the message broker. The
// audit store is the source of truth; publishing is at-least-once and a
// record is only marked published after the broker accepted it.
type AuditOutboxWorker struct {
	repo      repository.AuditRepository
	broker    messaging.Broker
	logger    *logger.Logger
	metrics   *metrics.Metrics
	batchSize int
	interval  time.Duration
}

func NewAuditOutboxWorker(
	repo repository.AuditRepository,
	broker messaging.Broker,
	log *logger.Logger,
	m *metrics.Metrics,
	batchSize int,
	interval time.Duration,
) *AuditOutboxWorker {
	return &AuditOutboxWorker{
		repo:      repo,
		broker:    broker,
		logger:    log,
		metrics:   m,
		batchSize: batchSize,
		interval:  interval,
	}
}

func (w *AuditOutboxWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("audit outbox worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit outbox worker shutting down")
			return
		case <-ticker.C:
			if err := w.publishBatch(ctx); err != nil {
				w.logger.Error(err, "audit outbox batch failed")
			}
		}
	}
}

func (w *AuditOutboxWorker) publishBatch(ctx context.Context) error {
	listStart := time.Now()
	records, err := w.repo.ListUnpublished(ctx, w.batchSize)
	if w.metrics != nil {
		w.metrics.DatabaseOperations.WithLabelValues("list_unpublished", statusLabel(err)).Inc()
		w.metrics.DatabaseLatency.WithLabelValues("list_unpublished").Observe(time.Since(listStart).Seconds())
	}
	if err != nil {
		return fmt.Errorf("list unpublished audit records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	published := records[:0]
	for _, record := range records {
		if err := w.broker.Publish(ctx, messaging.ChannelAuditEvents, record); err != nil {
			// Stop at the first failure; the rest stays unpublished and
			// is retried next tick.
			w.logger.Error(err, "publish audit record", "record_id", record.ID)
			break
		}
		published = append(published, record)
	}

	if len(published) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(published))
	for _, record := range published {
		ids = append(ids, record.ID)
	}
	markStart := time.Now()
	err = w.repo.MarkPublished(ctx, ids, time.Now().UTC())
	if w.metrics != nil {
		w.metrics.DatabaseOperations.WithLabelValues("mark_published", statusLabel(err)).Inc()
		w.metrics.DatabaseLatency.WithLabelValues("mark_published").Observe(time.Since(markStart).Seconds())
	}
	if err != nil {
		// Marking failed: the records will be re-published. Subscribers
		// must tolerate duplicates.
		return fmt.Errorf("mark audit records published: %w", err)
	}

	if w.metrics != nil {
		w.metrics.AuditEventsPublished.Add(float64(len(published)))
		w.metrics.AuditPublishLatency.Observe(time.Since(start).Seconds())
	}
	w.logger.Info("audit records published", "count", len(published))
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
