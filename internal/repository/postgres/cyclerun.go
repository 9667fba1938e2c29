package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
)

type cycleRunRepository struct {
	BaseRepository
}

func NewCycleRunRepository(base BaseRepository) repository.CycleRunRepository {
	return &cycleRunRepository{base}
}

func (r *cycleRunRepository) Create(ctx context.Context, run *model.CycleRun) error {
	query := `
		INSERT INTO cycle_runs (
			id, started_at, finished_at, dry_run, postings, subscriptions,
			matches, sent, suppressed_dedup, suppressed_throttle,
			skipped_no_device, failures, triggered_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	run.ID = uuid.New()

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.DryRun,
		run.Postings,
		run.Subscriptions,
		run.Matches,
		run.Sent,
		run.SuppressedDedup,
		run.SuppressedThrottle,
		run.SkippedNoDevice,
		run.Failures,
		run.TriggeredBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create cycle run: %w", err)
	}
	return nil
}

// AggregateDaily joins ledger outcomes with per-run suppression
// counters. Suppressions never create ledger rows, so they are only
// visible through cycle_runs.
func (r *cycleRunRepository) AggregateDaily(ctx context.Context, since time.Time) ([]*model.DailyStat, error) {
	query := `
		WITH ledger AS (
			SELECT date_trunc('day', created_at)::date AS day,
				COUNT(*) FILTER (WHERE delivery_status IN ('sent', 'delivered')) AS sent,
				COUNT(*) FILTER (WHERE delivery_status = 'failed') AS failed
			FROM notifications
			WHERE created_at >= $1
			GROUP BY 1
		), runs AS (
			SELECT date_trunc('day', started_at)::date AS day,
				SUM(suppressed_dedup) AS suppressed_dedup,
				SUM(suppressed_throttle) AS suppressed_throttle
			FROM cycle_runs
			WHERE started_at >= $1 AND dry_run = FALSE
			GROUP BY 1
		)
		SELECT COALESCE(l.day, r.day)::text AS day,
			COALESCE(l.sent, 0) AS sent,
			COALESCE(l.failed, 0) AS failed,
			COALESCE(r.suppressed_dedup, 0) AS suppressed_dedup,
			COALESCE(r.suppressed_throttle, 0) AS suppressed_throttle
		FROM ledger l
		FULL OUTER JOIN runs r ON l.day = r.day
		ORDER BY day DESC
	`

	var stats []*model.DailyStat
	if err := r.db.SelectContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate daily stats: %w", err)
	}

	return stats, nil
}

func (r *cycleRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM cycle_runs
		WHERE started_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old cycle runs: %w", err)
	}

	return result.RowsAffected()
}
