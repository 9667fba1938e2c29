package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
)

type jobRepository struct {
	BaseRepository
}

func NewJobRepository(base BaseRepository) repository.JobRepository {
	return &jobRepository{base}
}

// ListPostedSince returns the lookback batch for one cycle. Oldest
// first so a truncated batch drops the newest postings, which the next
// cycle's window still covers.
func (r *jobRepository) ListPostedSince(ctx context.Context, since time.Time, limit int) ([]*model.JobPosting, error) {
	query := `
		SELECT * FROM job_postings
		WHERE posted_at >= $1
		ORDER BY posted_at ASC
		LIMIT $2
	`

	var postings []*model.JobPosting
	if err := r.db.SelectContext(ctx, &postings, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to list postings: %w", err)
	}

	return postings, nil
}
