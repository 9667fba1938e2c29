// Package engine orchestrates notification cycles: load the recent
// posting window, match every active subscription against it, and push
// each surviving pair through dedup, throttle and dispatch in that
// order. Suppression checks are strictly ordered so a throttled pair
// is never recorded as deduplicated and vice versa.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobpulse/notifier/internal/dispatch"
	"github.com/jobpulse/notifier/internal/matcher"
	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/repository"
	"github.com/jobpulse/notifier/internal/throttle"
	"github.com/jobpulse/notifier/pkg/logger"
	"github.com/jobpulse/notifier/pkg/messaging"
	"github.com/jobpulse/notifier/pkg/metrics"
)

// ErrCycleInProgress is returned when another run holds the cycle lock.
var ErrCycleInProgress = errors.New("a cycle is already in progress")

// Sender is the dispatch boundary the engine drives.
type Sender interface {
	Send(ctx context.Context, sub *model.Subscription, posting *model.JobPosting, matched []string) (*dispatch.Outcome, error)
}

type Config struct {
	Interval        time.Duration
	BatchSize       int
	Workers         int
	DispatchTimeout time.Duration
	LockTTL         time.Duration
}

// RunOptions tweaks a single run. Zero value is a normal scheduled run.
type RunOptions struct {
	// DryRun evaluates matching, dedup and throttle but writes nothing
	// and sends nothing.
	DryRun bool
	// Limit caps the postings scanned this run; 0 uses the batch size.
	Limit int
	// TriggeredBy records who started the run (scheduler, operator).
	TriggeredBy string
}

type Engine struct {
	subscriptions repository.SubscriptionRepository
	jobs          repository.JobRepository
	ledger        repository.NotificationRepository
	runs          repository.CycleRunRepository
	governor      *throttle.Governor
	sender        Sender
	locker        Locker
	broker        messaging.Broker
	logger        *logger.Logger
	metrics       *metrics.Metrics
	cfg           Config
}

func New(
	subscriptions repository.SubscriptionRepository,
	jobs repository.JobRepository,
	ledger repository.NotificationRepository,
	runs repository.CycleRunRepository,
	governor *throttle.Governor,
	sender Sender,
	locker Locker,
	broker messaging.Broker,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 15 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}

	return &Engine{
		subscriptions: subscriptions,
		jobs:          jobs,
		ledger:        ledger,
		runs:          runs,
		governor:      governor,
		sender:        sender,
		locker:        locker,
		broker:        broker,
		logger:        log.WithComponent("engine"),
		metrics:       m,
		cfg:           cfg,
	}
}

// Run executes one full cycle. Runs are serialized through the locker;
// a second concurrent call gets ErrCycleInProgress. Re-running over
// the same posting window is safe: the ledger swallows every pair that
// was already handled.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.CycleStats, error) {
	if e.locker != nil {
		release, ok, err := e.locker.Acquire(ctx, e.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire cycle lock: %w", err)
		}
		if !ok {
			return nil, ErrCycleInProgress
		}
		defer release()
	}

	stats := &model.CycleStats{
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
	}

	// Lookback is twice the interval so scheduling jitter or a skipped
	// tick never drops a posting. The ledger absorbs the overlap.
	since := stats.StartedAt.Add(-2 * e.cfg.Interval)
	limit := e.cfg.BatchSize
	if opts.Limit > 0 && opts.Limit < limit {
		limit = opts.Limit
	}

	postings, err := e.jobs.ListPostedSince(ctx, since, limit)
	if err != nil {
		e.metrics.ObserveCycle("error", time.Since(stats.StartedAt).Seconds())
		return nil, fmt.Errorf("failed to load postings: %w", err)
	}
	stats.Postings = int64(len(postings))

	subs, err := e.subscriptions.ListActive(ctx)
	if err != nil {
		e.metrics.ObserveCycle("error", time.Since(stats.StartedAt).Seconds())
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	stats.Subscriptions = int64(len(subs))

	e.logger.Info("cycle started",
		"postings", len(postings), "subscriptions", len(subs),
		"dry_run", opts.DryRun, "triggered_by", opts.TriggeredBy)

	if len(postings) > 0 && len(subs) > 0 {
		e.fanOut(ctx, subs, postings, stats, opts.DryRun)
	}

	stats.FinishedAt = time.Now()
	e.metrics.ObserveCycle("ok", stats.FinishedAt.Sub(stats.StartedAt).Seconds())
	e.metrics.AddScanned(float64(stats.Postings), float64(stats.Matches))

	if err := e.recordRun(ctx, stats, opts); err != nil {
		e.logger.Error(err, "failed to record cycle run")
	}
	e.publishCompleted(stats)

	e.logger.Info("cycle finished",
		"matches", stats.Matches, "sent", stats.Sent,
		"suppressed_dedup", stats.SuppressedDedup,
		"suppressed_throttle", stats.SuppressedThrottle,
		"skipped_no_device", stats.SkippedNoDevice,
		"failures", stats.Failures,
		"duration", stats.FinishedAt.Sub(stats.StartedAt).String())

	return stats, nil
}

// fanOut spreads subscriptions over the worker pool. Each worker owns
// one subscription at a time, so per-user throttle counts stay
// consistent within a run.
func (e *Engine) fanOut(ctx context.Context, subs []*model.Subscription, postings []*model.JobPosting, stats *model.CycleStats, dryRun bool) {
	work := make(chan *model.Subscription)
	var wg sync.WaitGroup

	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range work {
				e.processSubscription(ctx, sub, postings, stats, dryRun)
			}
		}()
	}

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		case work <- sub:
		}
	}
	close(work)
	wg.Wait()
}

func (e *Engine) processSubscription(ctx context.Context, sub *model.Subscription, postings []*model.JobPosting, stats *model.CycleStats, dryRun bool) {
	for _, posting := range postings {
		if ctx.Err() != nil {
			return
		}

		matched := matcher.Match(posting, sub.Keywords)
		if len(matched) == 0 {
			continue
		}
		stats.AddMatches(1)

		fingerprint := matcher.Fingerprint(posting.Company, posting.Title)
		exists, err := e.ledger.Exists(ctx, sub.UserID, fingerprint)
		if err != nil {
			e.logger.Error(err, "dedup check failed", "user_id", sub.UserID.String())
			stats.IncFailures()
			continue
		}
		if exists {
			stats.IncSuppressedDedup()
			e.metrics.IncSuppressed("dedup")
			continue
		}

		decision, err := e.governor.Check(ctx, sub, time.Now())
		if err != nil {
			e.logger.Error(err, "throttle check failed", "user_id", sub.UserID.String())
			stats.IncFailures()
			continue
		}
		if !decision.Allowed() {
			stats.IncSuppressedThrottle()
			e.metrics.IncSuppressed(string(decision))
			continue
		}

		if dryRun {
			stats.IncSent()
			continue
		}

		dispatchCtx, cancel := context.WithTimeout(ctx, e.cfg.DispatchTimeout)
		outcome, err := e.sender.Send(dispatchCtx, sub, posting, matched)
		cancel()
		if err != nil {
			e.logger.Error(err, "dispatch failed",
				"user_id", sub.UserID.String(), "job_id", posting.ID)
			stats.IncFailures()
			e.metrics.IncDispatchFailure()
			continue
		}

		switch outcome.Status {
		case dispatch.StatusSent:
			stats.IncSent()
			e.metrics.IncSent()
		case dispatch.StatusAlreadyNotified:
			// Another worker or instance won the claim between the
			// Exists check and the insert.
			stats.IncSuppressedDedup()
			e.metrics.IncSuppressed("dedup")
		case dispatch.StatusNoDevices:
			stats.IncSkippedNoDevice()
		case dispatch.StatusFailed:
			stats.IncFailures()
		}
	}
}

func (e *Engine) recordRun(ctx context.Context, stats *model.CycleStats, opts RunOptions) error {
	// Dry runs write nothing, the run record included.
	if e.runs == nil || stats.DryRun {
		return nil
	}
	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "scheduler"
	}
	return e.runs.Create(ctx, &model.CycleRun{
		StartedAt:          stats.StartedAt,
		FinishedAt:         stats.FinishedAt,
		DryRun:             stats.DryRun,
		Postings:           stats.Postings,
		Subscriptions:      stats.Subscriptions,
		Matches:            atomic.LoadInt64(&stats.Matches),
		Sent:               atomic.LoadInt64(&stats.Sent),
		SuppressedDedup:    atomic.LoadInt64(&stats.SuppressedDedup),
		SuppressedThrottle: atomic.LoadInt64(&stats.SuppressedThrottle),
		SkippedNoDevice:    atomic.LoadInt64(&stats.SkippedNoDevice),
		Failures:           atomic.LoadInt64(&stats.Failures),
		TriggeredBy:        triggeredBy,
	})
}

func (e *Engine) publishCompleted(stats *model.CycleStats) {
	if e.broker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.broker.Publish(ctx, messaging.ChannelCycleCompleted, stats); err != nil {
		e.logger.Warn("failed to publish cycle completion")
	}
}
