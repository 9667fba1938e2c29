// Package repositorytest provides in-memory repository fakes for
// engine and dispatcher tests.
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
)

func ledgerKey(userID uuid.UUID, fingerprint string) string {
	return userID.String() + "|" + fingerprint
}

// FakeNotificationRepo is an in-memory dedup ledger with the same
// unique-constraint semantics as the Postgres implementation.
type FakeNotificationRepo struct {
	mu        sync.Mutex
	rows      map[string]*model.Notification
	InsertErr error // next Insert fails with this when set
}

func NewFakeNotificationRepo() *FakeNotificationRepo {
	return &FakeNotificationRepo{rows: make(map[string]*model.Notification)}
}

// Seed places a row directly in the ledger.
func (f *FakeNotificationRepo) Seed(n *model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	f.rows[ledgerKey(n.UserID, n.JobFingerprint)] = n
}

// Rows returns a snapshot of all ledger rows.
func (f *FakeNotificationRepo) Rows() []*model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Notification, 0, len(f.rows))
	for _, n := range f.rows {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *FakeNotificationRepo) Exists(_ context.Context, userID uuid.UUID, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[ledgerKey(userID, fingerprint)]
	return ok, nil
}

func (f *FakeNotificationRepo) Insert(_ context.Context, n *model.Notification) (model.InsertOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.InsertErr != nil {
		err := f.InsertErr
		f.InsertErr = nil
		return 0, err
	}

	key := ledgerKey(n.UserID, n.JobFingerprint)
	if _, ok := f.rows[key]; ok {
		return model.OutcomeAlreadyExists, nil
	}

	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	if n.DeliveryStatus == "" {
		n.DeliveryStatus = model.DeliveryStatusPending
	}
	clone := *n
	f.rows[key] = &clone
	return model.OutcomeInserted, nil
}

func (f *FakeNotificationRepo) UpdateDeliveryStatus(_ context.Context, id uuid.UUID, status model.DeliveryStatus, sentAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id {
			n.DeliveryStatus = status
			if sentAt != nil {
				n.SentAt = sentAt
			}
			n.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("notification: %w", repository.ErrNotFound)
}

func (f *FakeNotificationRepo) CountSentSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.rows {
		if n.UserID != userID || n.DeliveryStatus == model.DeliveryStatusFailed {
			continue
		}
		if !n.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *FakeNotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, p model.Pagination) ([]*model.Notification, int64, error) {
	p.Normalize()
	f.mu.Lock()
	defer f.mu.Unlock()

	var all []*model.Notification
	for _, n := range f.rows {
		if n.UserID == userID && !n.IsDeleted {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := p.Offset()
	if start > len(all) {
		return nil, total, nil
	}
	end := start + p.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *FakeNotificationRepo) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id && n.UserID == userID && !n.IsDeleted {
			n.IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification: %w", repository.ErrNotFound)
}

func (f *FakeNotificationRepo) SoftDelete(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id && n.UserID == userID && !n.IsDeleted {
			n.IsDeleted = true
			return nil
		}
	}
	return fmt.Errorf("notification: %w", repository.ErrNotFound)
}

func (f *FakeNotificationRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for key, n := range f.rows {
		if n.CreatedAt.Before(cutoff) {
			delete(f.rows, key)
			deleted++
		}
	}
	return deleted, nil
}

// FakeDeviceRepo is an in-memory device registry.
type FakeDeviceRepo struct {
	mu          sync.Mutex
	tokens      []*model.DeviceToken
	Deactivated []uuid.UUID
}

func NewFakeDeviceRepo(tokens ...*model.DeviceToken) *FakeDeviceRepo {
	return &FakeDeviceRepo{tokens: tokens}
}

func (f *FakeDeviceRepo) Add(t *model.DeviceToken) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, t)
}

func (f *FakeDeviceRepo) ListActive(_ context.Context, userID uuid.UUID) ([]*model.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.DeviceToken
	for _, t := range f.tokens {
		if t.UserID == userID && t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *FakeDeviceRepo) Deactivate(_ context.Context, tokenID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t.ID == tokenID {
			t.Active = false
			f.Deactivated = append(f.Deactivated, tokenID)
			return nil
		}
	}
	return fmt.Errorf("token: %w", repository.ErrNotFound)
}

func (f *FakeDeviceRepo) TouchLastUsed(_ context.Context, tokenID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, t := range f.tokens {
		if t.ID == tokenID {
			t.LastUsedAt = &now
			return nil
		}
	}
	return nil
}

// FakeSubscriptionRepo serves a fixed subscription list.
type FakeSubscriptionRepo struct {
	Subs []*model.Subscription
}

func (f *FakeSubscriptionRepo) ListActive(_ context.Context) ([]*model.Subscription, error) {
	var out []*model.Subscription
	for _, s := range f.Subs {
		if s.NotificationsEnabled && len(s.Keywords) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FakeSubscriptionRepo) Get(_ context.Context, userID uuid.UUID) (*model.Subscription, error) {
	for _, s := range f.Subs {
		if s.UserID == userID {
			return s, nil
		}
	}
	return nil, fmt.Errorf("subscription: %w", repository.ErrNotFound)
}

// FakeJobRepo serves a fixed posting feed.
type FakeJobRepo struct {
	Postings []*model.JobPosting
}

func (f *FakeJobRepo) ListPostedSince(_ context.Context, since time.Time, limit int) ([]*model.JobPosting, error) {
	var out []*model.JobPosting
	for _, p := range f.Postings {
		if !p.PostedAt.Before(since) {
			out = append(out, p)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// FakeCycleRunRepo records created runs.
type FakeCycleRunRepo struct {
	mu   sync.Mutex
	Runs []*model.CycleRun
}

func (f *FakeCycleRunRepo) Create(_ context.Context, run *model.CycleRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = uuid.New()
	f.Runs = append(f.Runs, run)
	return nil
}

func (f *FakeCycleRunRepo) AggregateDaily(_ context.Context, _ time.Time) ([]*model.DailyStat, error) {
	return nil, nil
}

func (f *FakeCycleRunRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*model.CycleRun
	var deleted int64
	for _, r := range f.Runs {
		if r.StartedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	f.Runs = kept
	return deleted, nil
}
