package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jobpulse/notifier/internal/repository"
	"github.com/jobpulse/notifier/pkg/logger"
)

// RetentionWorker prunes ledger rows and cycle runs past the retention
// window. Pruned ledger rows are months older than anything still in
// the scraped feed, so dropping them cannot re-trigger a notification.
type RetentionWorker struct {
	notifications repository.NotificationRepository
	runs          repository.CycleRunRepository
	retentionDays int
	interval      time.Duration
	logger        *logger.Logger
}

func NewRetentionWorker(
	notifications repository.NotificationRepository,
	runs repository.CycleRunRepository,
	retentionDays int,
	interval time.Duration,
	log *logger.Logger,
) *RetentionWorker {
	if retentionDays <= 0 {
		retentionDays = 180
	}
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	return &RetentionWorker{
		notifications: notifications,
		runs:          runs,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        log.WithComponent("retention"),
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.prune(ctx); err != nil {
				w.logger.Error(err, "retention prune failed")
			}
		}
	}
}

func (w *RetentionWorker) prune(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	notifications, err := w.notifications.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune notifications: %w", err)
	}

	runs, err := w.runs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune cycle runs: %w", err)
	}

	if notifications > 0 || runs > 0 {
		w.logger.Info("retention prune completed",
			"notifications", notifications, "cycle_runs", runs,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return nil
}
