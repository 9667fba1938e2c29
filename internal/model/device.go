package model

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is one web push subscription for a user. A user may have
// several (multi-device); each send attempt is tracked independently.
type DeviceToken struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Endpoint   string     `json:"endpoint" db:"endpoint"`
	P256dh     string     `json:"p256dh" db:"p256dh"`
	Auth       string     `json:"auth" db:"auth"`
	Active     bool       `json:"active" db:"active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}
