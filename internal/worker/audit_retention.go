package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
)

// AuditRetentionWorker prunes audit records past the retention window.
// Retention is long by default; the point is a bounded table, not a
// short memory.
type AuditRetentionWorker struct {
	repo          repository.AuditRepository
	logger        *logger.Logger
	retentionDays int
	interval      time.Duration
}

func NewAuditRetentionWorker(repo repository.AuditRepository, log *logger.Logger, retentionDays int, interval time.Duration) *AuditRetentionWorker {
	return &AuditRetentionWorker{
		repo:          repo,
		logger:        log,
		retentionDays: retentionDays,
		interval:      interval,
	}
}

func (w *AuditRetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.prune(ctx); err != nil {
				w.logger.Error(err, "audit retention pass failed")
			}
		}
	}
}

func (w *AuditRetentionWorker) prune(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune audit records: %w", err)
	}
	if rows > 0 {
		w.logger.Info("audit records pruned", "count", rows, "cutoff", cutoff)
	}
	return nil
}
