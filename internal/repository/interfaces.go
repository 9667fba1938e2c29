package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jobpulse/notifier/internal/model"
)

// ErrNotFound is returned when a lookup or a targeted update matches no
// row.
var ErrNotFound = errors.New("not found")

// All repository interfaces in one file
type (
	// SubscriptionRepository is the engine's read-only view of user
	// keyword subscriptions. Mutation happens in the profile API.
	SubscriptionRepository interface {
		ListActive(ctx context.Context) ([]*model.Subscription, error)
		Get(ctx context.Context, userID uuid.UUID) (*model.Subscription, error)
	}

	// JobRepository reads the scraped feed table.
	JobRepository interface {
		ListPostedSince(ctx context.Context, since time.Time, limit int) ([]*model.JobPosting, error)
	}

	// DeviceRepository is the device registry boundary.
	DeviceRepository interface {
		ListActive(ctx context.Context, userID uuid.UUID) ([]*model.DeviceToken, error)
		Deactivate(ctx context.Context, tokenID uuid.UUID) error
		TouchLastUsed(ctx context.Context, tokenID uuid.UUID) error
	}

	// NotificationRepository is the deduplication ledger plus the
	// user-facing history surface.
	NotificationRepository interface {
		Exists(ctx context.Context, userID uuid.UUID, fingerprint string) (bool, error)
		Insert(ctx context.Context, n *model.Notification) (model.InsertOutcome, error)
		UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status model.DeliveryStatus, sentAt *time.Time) error
		CountSentSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
		ListByUser(ctx context.Context, userID uuid.UUID, p model.Pagination) ([]*model.Notification, int64, error)
		MarkRead(ctx context.Context, userID, id uuid.UUID) error
		SoftDelete(ctx context.Context, userID, id uuid.UUID) error
		DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// CycleRunRepository persists per-run statistics.
	CycleRunRepository interface {
		Create(ctx context.Context, run *model.CycleRun) error
		AggregateDaily(ctx context.Context, since time.Time) ([]*model.DailyStat, error)
		DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
