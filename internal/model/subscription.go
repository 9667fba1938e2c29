package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Subscription is a user's keyword alert profile. Owned by the profile
// API; the engine only reads it.
type Subscription struct {
	UserID               uuid.UUID      `json:"user_id" db:"user_id"`
	Keywords             pq.StringArray `json:"keywords" db:"keywords"`
	NotificationsEnabled bool           `json:"notifications_enabled" db:"notifications_enabled"`
	QuietHoursStart      *string        `json:"quiet_hours_start,omitempty" db:"quiet_hours_start"`
	QuietHoursEnd        *string        `json:"quiet_hours_end,omitempty" db:"quiet_hours_end"`
	Timezone             string         `json:"timezone" db:"timezone"`
	MaxPerHour           int            `json:"max_per_hour" db:"max_per_hour"`
	MaxPerDay            int            `json:"max_per_day" db:"max_per_day"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}
