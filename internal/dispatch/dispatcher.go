// Package dispatch fans one matched (user, job) pair out to every
// active device and collapses the attempts into a single ledger row.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	cache "github.com/patrickmn/go-cache"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/jobpulse/notifier/internal/matcher"
	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/push"
	"github.com/jobpulse/notifier/internal/repository"
	"github.com/jobpulse/notifier/pkg/circuitbreaker"
	"github.com/jobpulse/notifier/pkg/logger"
	"github.com/jobpulse/notifier/pkg/messaging"
	"github.com/jobpulse/notifier/pkg/metrics"
)

// Status is the user-level result of one dispatch.
type Status string

const (
	StatusSent            Status = "sent"
	StatusAlreadyNotified Status = "already_notified"
	StatusNoDevices       Status = "no_devices"
	StatusFailed          Status = "failed"
)

// Outcome aggregates the per-device attempts for one (user, job) pair.
type Outcome struct {
	Status       Status
	Notification *model.Notification
	Attempted    int
	Delivered    int
}

type Config struct {
	MaxRetries    int
	SendTimeout   time.Duration
	RatePerSecond float64
	RateBurst     int
	TokenCacheTTL time.Duration
}

type Dispatcher struct {
	gateway push.Gateway
	devices repository.DeviceRepository
	ledger  repository.NotificationRepository
	broker  messaging.Broker
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
	tokens  *cache.Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
	cfg     Config
}

func NewDispatcher(
	gateway push.Gateway,
	devices repository.DeviceRepository,
	ledger repository.NotificationRepository,
	broker messaging.Broker,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 50
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 100
	}
	if cfg.TokenCacheTTL <= 0 {
		cfg.TokenCacheTTL = 5 * time.Minute
	}

	return &Dispatcher{
		gateway: gateway,
		devices: devices,
		ledger:  ledger,
		broker:  broker,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "push-gateway",
			MaxFailures: 10,
			Timeout:     30 * time.Second,
		}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		tokens:  cache.New(cfg.TokenCacheTTL, 10*time.Minute),
		logger:  log.WithComponent("dispatcher"),
		metrics: m,
		cfg:     cfg,
	}
}

// Send delivers one matched pair. The ledger insert happens before any
// device send: the unique constraint on (user, fingerprint) is what
// serializes concurrent workers and engine instances, so whoever wins
// the claim does the sending and everyone else backs off. Fan-out
// across devices happens after the claim and collapses into that one
// row regardless of how many tokens were attempted.
func (d *Dispatcher) Send(ctx context.Context, sub *model.Subscription, posting *model.JobPosting, matched []string) (*Outcome, error) {
	tokens, err := d.activeTokens(ctx, sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		// No ledger row: the user stays eligible for this job once a
		// device shows up.
		return &Outcome{Status: StatusNoDevices}, nil
	}

	n := &model.Notification{
		UserID:          sub.UserID,
		JobFingerprint:  matcher.Fingerprint(posting.Company, posting.Title),
		JobID:           posting.ID,
		JobTitle:        posting.Title,
		JobCompany:      posting.Company,
		MatchedKeywords: pq.StringArray(matched),
		DeliveryStatus:  model.DeliveryStatusPending,
	}

	res, err := d.ledger.Insert(ctx, n)
	if err != nil {
		// Transient ledger failure: nothing was claimed, the pair is
		// retried on the next cycle.
		return nil, fmt.Errorf("failed to claim notification: %w", err)
	}
	if res == model.OutcomeAlreadyExists {
		return &Outcome{Status: StatusAlreadyNotified}, nil
	}

	payload := d.renderPayload(n, posting)

	var delivered int64
	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(t *model.DeviceToken) {
			defer wg.Done()
			if err := d.sendToDevice(ctx, t, payload); err != nil {
				d.logger.Warn("device send failed",
					"user_id", t.UserID.String(), "token_id", t.ID.String(), "error", err.Error())
				return
			}
			atomic.AddInt64(&delivered, 1)
		}(token)
	}
	wg.Wait()

	outcome := &Outcome{
		Notification: n,
		Attempted:    len(tokens),
		Delivered:    int(atomic.LoadInt64(&delivered)),
	}

	if outcome.Delivered > 0 {
		now := time.Now()
		n.SentAt = &now
		n.DeliveryStatus = model.DeliveryStatusSent
		outcome.Status = StatusSent
		if err := d.ledger.UpdateDeliveryStatus(ctx, n.ID, model.DeliveryStatusSent, &now); err != nil {
			d.logger.Error(err, "failed to mark notification sent", "notification_id", n.ID.String())
		}
		d.publishSent(n)
		return outcome, nil
	}

	n.DeliveryStatus = model.DeliveryStatusFailed
	outcome.Status = StatusFailed
	if err := d.ledger.UpdateDeliveryStatus(ctx, n.ID, model.DeliveryStatusFailed, nil); err != nil {
		d.logger.Error(err, "failed to mark notification failed", "notification_id", n.ID.String())
	}
	d.metrics.IncDispatchFailure()
	return outcome, nil
}

// sendToDevice runs one token's attempt with rate limiting, a per-call
// timeout, the gateway circuit breaker and bounded fibonacci backoff.
// Terminal provider rejections deactivate the token instead of
// retrying.
func (d *Dispatcher) sendToDevice(ctx context.Context, token *model.DeviceToken, payload push.Payload) error {
	backoff := retry.WithMaxRetries(uint64(d.cfg.MaxRetries), retry.NewFibonacci(250*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()

		start := time.Now()
		sendErr := d.breaker.Execute(func() error {
			return d.gateway.Send(callCtx, token, payload)
		})
		if sendErr == nil {
			d.metrics.ObservePush("ok", time.Since(start).Seconds())
			return nil
		}

		d.metrics.ObservePush("error", time.Since(start).Seconds())
		if push.IsTransient(sendErr) || errors.Is(sendErr, circuitbreaker.ErrOpen) {
			return retry.RetryableError(sendErr)
		}
		return sendErr
	})
	if err == nil {
		if touchErr := d.devices.TouchLastUsed(ctx, token.ID); touchErr != nil {
			d.logger.Warn("failed to touch device token", "token_id", token.ID.String())
		}
		return nil
	}

	if errors.Is(err, push.ErrExpired) {
		if deErr := d.devices.Deactivate(ctx, token.ID); deErr != nil {
			d.logger.Error(deErr, "failed to deactivate expired token", "token_id", token.ID.String())
		} else {
			d.metrics.IncTokenExpired()
			d.tokens.Delete(token.UserID.String())
		}
	}
	return err
}

func (d *Dispatcher) renderPayload(n *model.Notification, posting *model.JobPosting) push.Payload {
	return push.Payload{
		Title: fmt.Sprintf("New job: %s", posting.Title),
		Body:  fmt.Sprintf("%s is hiring at %s", posting.Company, orUnknown(posting.Location)),
		Tag:   n.JobFingerprint,
		Data: map[string]interface{}{
			"job_id":           posting.ID,
			"job_fingerprint":  n.JobFingerprint,
			"matched_keywords": []string(n.MatchedKeywords),
		},
	}
}

func (d *Dispatcher) publishSent(n *model.Notification) {
	if d.broker == nil {
		return
	}

	event := model.SentEvent{
		NotificationID:  n.ID,
		UserID:          n.UserID,
		JobFingerprint:  n.JobFingerprint,
		JobTitle:        n.JobTitle,
		MatchedKeywords: n.MatchedKeywords,
		SentAt:          *n.SentAt,
	}

	// Fire-and-forget; analytics must not block delivery.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.broker.Publish(ctx, messaging.ChannelNotificationSent, event); err != nil {
		d.logger.Warn("failed to publish sent event", "notification_id", n.ID.String())
	}
}

func (d *Dispatcher) activeTokens(ctx context.Context, userID uuid.UUID) ([]*model.DeviceToken, error) {
	key := userID.String()
	if cached, ok := d.tokens.Get(key); ok {
		return cached.([]*model.DeviceToken), nil
	}

	tokens, err := d.devices.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Empty lists are not cached so a freshly registered device is
	// picked up on the very next dispatch.
	if len(tokens) > 0 {
		d.tokens.Set(key, tokens, cache.DefaultExpiration)
	}
	return tokens, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unspecified location"
	}
	return s
}
