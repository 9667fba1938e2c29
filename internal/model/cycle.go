package model

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CycleStats accumulates per-run counters. Counters are atomic because
// subscriptions are processed on a worker pool within one run.
type CycleStats struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DryRun     bool      `json:"dry_run"`

	Postings           int64 `json:"postings"`
	Subscriptions      int64 `json:"subscriptions"`
	Matches            int64 `json:"matches"`
	Sent               int64 `json:"sent"`
	SuppressedDedup    int64 `json:"suppressed_dedup"`
	SuppressedThrottle int64 `json:"suppressed_throttle"`
	SkippedNoDevice    int64 `json:"skipped_no_device"`
	Failures           int64 `json:"failures"`
}

func (s *CycleStats) AddMatches(n int64)        { atomic.AddInt64(&s.Matches, n) }
func (s *CycleStats) IncSent()                  { atomic.AddInt64(&s.Sent, 1) }
func (s *CycleStats) IncSuppressedDedup()       { atomic.AddInt64(&s.SuppressedDedup, 1) }
func (s *CycleStats) IncSuppressedThrottle()    { atomic.AddInt64(&s.SuppressedThrottle, 1) }
func (s *CycleStats) IncSkippedNoDevice()       { atomic.AddInt64(&s.SkippedNoDevice, 1) }
func (s *CycleStats) IncFailures()              { atomic.AddInt64(&s.Failures, 1) }

// CycleRun is the persisted record of one completed cycle, used by the
// stats endpoint (suppressions leave no ledger rows, so they are only
// visible here).
type CycleRun struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	StartedAt          time.Time `json:"started_at" db:"started_at"`
	FinishedAt         time.Time `json:"finished_at" db:"finished_at"`
	DryRun             bool      `json:"dry_run" db:"dry_run"`
	Postings           int64     `json:"postings" db:"postings"`
	Subscriptions      int64     `json:"subscriptions" db:"subscriptions"`
	Matches            int64     `json:"matches" db:"matches"`
	Sent               int64     `json:"sent" db:"sent"`
	SuppressedDedup    int64     `json:"suppressed_dedup" db:"suppressed_dedup"`
	SuppressedThrottle int64     `json:"suppressed_throttle" db:"suppressed_throttle"`
	SkippedNoDevice    int64     `json:"skipped_no_device" db:"skipped_no_device"`
	Failures           int64     `json:"failures" db:"failures"`
	TriggeredBy        string    `json:"triggered_by" db:"triggered_by"`
}
