package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
)

type deviceRepository struct {
	BaseRepository
}

func NewDeviceRepository(base BaseRepository) repository.DeviceRepository {
	return &deviceRepository{base}
}

func (r *deviceRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]*model.DeviceToken, error) {
	query := `
		SELECT * FROM device_tokens
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at
	`

	var tokens []*model.DeviceToken
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}

	return tokens, nil
}

// Deactivate marks a token dead after a terminal push error (410 Gone,
// unregistered endpoint). The row stays for audit.
func (r *deviceRepository) Deactivate(ctx context.Context, tokenID uuid.UUID) error {
	query := `
		UPDATE device_tokens
		SET active = FALSE
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, tokenID); err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}
	return nil
}

func (r *deviceRepository) TouchLastUsed(ctx context.Context, tokenID uuid.UUID) error {
	query := `
		UPDATE device_tokens
		SET last_used_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, tokenID); err != nil {
		return fmt.Errorf("failed to touch device token: %w", err)
	}
	return nil
}
