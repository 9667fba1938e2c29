package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

// Exists reports whether the ledger already holds (user, fingerprint).
// is_read/is_deleted are deliberately ignored: a deleted inbox entry
// must never cause a re-notification.
func (r *notificationRepository) Exists(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND job_fingerprint = $2
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, fingerprint); err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}

	return exists, nil
}

// Insert claims the (user, fingerprint) pair. The unique constraint is
// the serialization primitive: a violation means another worker or
// instance got there first and is reported as OutcomeAlreadyExists,
// not as an error.
func (r *notificationRepository) Insert(ctx context.Context, n *model.Notification) (model.InsertOutcome, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, job_fingerprint, job_id, job_title, job_company,
			matched_keywords, delivery_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, job_fingerprint) DO NOTHING
	`

	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	if n.DeliveryStatus == "" {
		n.DeliveryStatus = model.DeliveryStatusPending
	}

	result, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.JobFingerprint,
		n.JobID,
		n.JobTitle,
		n.JobCompany,
		n.MatchedKeywords,
		n.DeliveryStatus,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return model.OutcomeAlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.OutcomeAlreadyExists, nil
	}

	return model.OutcomeInserted, nil
}

func (r *notificationRepository) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status model.DeliveryStatus, sentAt *time.Time) error {
	query := `
		UPDATE notifications
		SET delivery_status = $1, sent_at = COALESCE($2, sent_at), updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, status, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification: %w", repository.ErrNotFound)
	}

	return nil
}

// CountSentSince feeds the throttle windows. Pending rows count too:
// a claimed pair is an in-flight send and must occupy throttle budget.
func (r *notificationRepository) CountSentSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1
		AND delivery_status IN ('pending', 'sent', 'delivered')
		AND created_at >= $2
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, since); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	return count, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, p model.Pagination) ([]*model.Notification, int64, error) {
	p.Normalize()

	countQuery := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_deleted = FALSE
	`
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count user notifications: %w", err)
	}

	query := `
		SELECT * FROM notifications
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID, p.PageSize, p.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list user notifications: %w", err)
	}

	return notifications, total, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification: %w", repository.ErrNotFound)
	}

	return nil
}

// SoftDelete hides the row from the inbox. The row itself is kept so
// the dedup guarantee survives the deletion.
func (r *notificationRepository) SoftDelete(ctx context.Context, userID, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification: %w", repository.ErrNotFound)
	}

	return nil
}

// DeleteOlderThan is the retention prune. Cutoffs are measured in
// months, long after the matching job left the feed, so dropping the
// ledger row cannot realistically re-trigger a notification.
func (r *notificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE created_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}

	return result.RowsAffected()
}
