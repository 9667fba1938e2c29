package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
)

type subscriptionRepository struct {
	BaseRepository
}

func NewSubscriptionRepository(base BaseRepository) repository.SubscriptionRepository {
	return &subscriptionRepository{base}
}

// ListActive returns subscriptions that can produce notifications:
// enabled and with at least one keyword.
func (r *subscriptionRepository) ListActive(ctx context.Context) ([]*model.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE notifications_enabled = TRUE
		AND cardinality(keywords) > 0
		ORDER BY user_id
	`

	var subs []*model.Subscription
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	return subs, nil
}

func (r *subscriptionRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE user_id = $1
	`

	var sub model.Subscription
	if err := r.db.GetContext(ctx, &sub, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subscription: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}
