// Package notification serves the user-facing history surface: listing,
// read receipts and soft deletion. Writes never touch the dedup
// columns, so inbox actions cannot cause a re-notification.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
	apperrors "github.com/jobpulse/notifier/pkg/errors"
)

const maxStatsDays = 90

type Service interface {
	History(ctx context.Context, userID uuid.UUID, p model.Pagination) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DailyStats(ctx context.Context, days int) ([]*model.DailyStat, error)
}

type service struct {
	notifications repository.NotificationRepository
	runs          repository.CycleRunRepository
}

func NewService(notifications repository.NotificationRepository, runs repository.CycleRunRepository) Service {
	return &service{
		notifications: notifications,
		runs:          runs,
	}
}

func (s *service) History(ctx context.Context, userID uuid.UUID, p model.Pagination) ([]*model.Notification, int64, error) {
	notifications, total, err := s.notifications.ListByUser(ctx, userID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("notification", err)
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// Delete soft-flags the row. The ledger entry survives so the
// (user, fingerprint) pair can never be re-notified.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.notifications.SoftDelete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("notification", err)
		}
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (s *service) DailyStats(ctx context.Context, days int) ([]*model.DailyStat, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := s.runs.AggregateDaily(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	return stats, nil
}
