package model

import (
	"time"

	"github.com/lib/pq"
)

// JobPosting is one row of the scraped feed. The table is owned by the
// external scraper and may be truncated and refilled between cycles, so
// the numeric id must never be used as a durable identity.
type JobPosting struct {
	ID          int64          `json:"id" db:"id"`
	SourceID    string         `json:"source_id" db:"source_id"`
	Title       string         `json:"title" db:"title"`
	Company     string         `json:"company" db:"company"`
	Source      string         `json:"source" db:"source"`
	Location    string         `json:"location" db:"location"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category" db:"category"`
	Skills      pq.StringArray `json:"skills" db:"skills"`
	PostedAt    time.Time      `json:"posted_at" db:"posted_at"`
	ScrapedAt   time.Time      `json:"scraped_at" db:"scraped_at"`
}
