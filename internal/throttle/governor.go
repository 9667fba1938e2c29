// Package throttle decides whether a user may receive a notification
// right now: quiet hours in the user's timezone, then trailing hourly
// and daily caps. The governor never writes state; counts are
// recomputed from the persisted ledger on every check, which keeps the
// limits correct across restarts and multiple engine instances.
package throttle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"

	"github.com/jobpulse/notifier/internal/model"
)

// Defaults applied when a subscription leaves the fields unset.
const (
	DefaultQuietStart = "22:00"
	DefaultQuietEnd   = "08:00"
	DefaultMaxPerHour = 5
	DefaultMaxPerDay  = 20
)

// Decision is the governor's verdict with the suppression reason.
type Decision string

const (
	DecisionAllow      Decision = "allow"
	DecisionQuietHours Decision = "quiet_hours"
	DecisionHourlyCap  Decision = "hourly_cap"
	DecisionDailyCap   Decision = "daily_cap"
)

// Allowed reports whether the decision permits a send.
func (d Decision) Allowed() bool {
	return d == DecisionAllow
}

// History is the slice of the ledger the governor consults.
type History interface {
	CountSentSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Governor evaluates quiet hours and rolling caps.
type Governor struct {
	history   History
	locations *cache.Cache
}

func NewGovernor(history History) *Governor {
	return &Governor{
		history:   history,
		locations: cache.New(12*time.Hour, time.Hour),
	}
}

// Check returns the throttle decision for sub at now. A suppression
// here leaves no trace in the ledger: the pair stays eligible for a
// later cycle once the window clears.
func (g *Governor) Check(ctx context.Context, sub *model.Subscription, now time.Time) (Decision, error) {
	if g.inQuietHours(sub, now) {
		return DecisionQuietHours, nil
	}

	maxHour := sub.MaxPerHour
	if maxHour <= 0 {
		maxHour = DefaultMaxPerHour
	}
	maxDay := sub.MaxPerDay
	if maxDay <= 0 {
		maxDay = DefaultMaxPerDay
	}

	hourly, err := g.history.CountSentSince(ctx, sub.UserID, now.Add(-time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to count hourly window: %w", err)
	}
	if hourly >= maxHour {
		return DecisionHourlyCap, nil
	}

	daily, err := g.history.CountSentSince(ctx, sub.UserID, now.Add(-24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("failed to count daily window: %w", err)
	}
	if daily >= maxDay {
		return DecisionDailyCap, nil
	}

	return DecisionAllow, nil
}

// inQuietHours evaluates [start, end) in the user's local time. The
// window may wrap past midnight (22:00-08:00). Unparseable or missing
// values fall back to the defaults; an equal start and end disables
// the window.
func (g *Governor) inQuietHours(sub *model.Subscription, now time.Time) bool {
	start := parseClock(strPtr(sub.QuietHoursStart), DefaultQuietStart)
	end := parseClock(strPtr(sub.QuietHoursEnd), DefaultQuietEnd)
	if start == end {
		return false
	}

	local := now.In(g.location(sub.Timezone))
	minute := local.Hour()*60 + local.Minute()

	if start < end {
		return minute >= start && minute < end
	}
	// wraps midnight
	return minute >= start || minute < end
}

func (g *Governor) location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, ok := g.locations.Get(name); ok {
		return loc.(*time.Location)
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	g.locations.Set(name, loc, cache.DefaultExpiration)
	return loc
}

func strPtr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// parseClock turns "HH:MM" into minutes since midnight.
func parseClock(s, fallback string) int {
	if s == "" {
		s = fallback
	}

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return parseClock(fallback, fallback)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		if s == fallback {
			return 0
		}
		return parseClock(fallback, fallback)
	}

	return h*60 + m
}
