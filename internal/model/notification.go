package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Notification is one row of the deduplication ledger. The UNIQUE
// (user_id, job_fingerprint) constraint is the at-most-once guarantee;
// rows are never hard-deleted by user actions, only soft-flagged, so a
// deleted inbox entry can never cause a re-notification.
type Notification struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	UserID          uuid.UUID      `json:"user_id" db:"user_id"`
	JobFingerprint  string         `json:"job_fingerprint" db:"job_fingerprint"`
	JobID           int64          `json:"job_id" db:"job_id"`
	JobTitle        string         `json:"job_title" db:"job_title"`
	JobCompany      string         `json:"job_company" db:"job_company"`
	MatchedKeywords pq.StringArray `json:"matched_keywords" db:"matched_keywords"`
	DeliveryStatus  DeliveryStatus `json:"delivery_status" db:"delivery_status"`
	SentAt          *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	IsRead          bool           `json:"is_read" db:"is_read"`
	IsDeleted       bool           `json:"is_deleted" db:"is_deleted"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// InsertOutcome is the tagged result of a ledger insert. A unique
// violation is control flow here, not an error.
type InsertOutcome int

const (
	OutcomeInserted InsertOutcome = iota
	OutcomeAlreadyExists
)

// SentEvent is published on the broker after a successful dispatch.
type SentEvent struct {
	NotificationID  uuid.UUID `json:"notification_id"`
	UserID          uuid.UUID `json:"user_id"`
	JobFingerprint  string    `json:"job_fingerprint"`
	JobTitle        string    `json:"job_title"`
	MatchedKeywords []string  `json:"matched_keywords"`
	SentAt          time.Time `json:"sent_at"`
}

// DailyStat is one row of the aggregate stats surface.
type DailyStat struct {
	Day                string `json:"day" db:"day"`
	Sent               int64  `json:"sent" db:"sent"`
	Failed             int64  `json:"failed" db:"failed"`
	SuppressedDedup    int64  `json:"suppressed_dedup" db:"suppressed_dedup"`
	SuppressedThrottle int64  `json:"suppressed_throttle" db:"suppressed_throttle"`
}
