package throttle_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobpulse/notifier/internal/model"
	"github.com/jobpulse/notifier/internal/throttle"
)

// fakeHistory returns canned counts per window width, keyed off the
// distance between the check instant and the window start.
type fakeHistory struct {
	now    time.Time
	hourly int
	daily  int
}

func (f *fakeHistory) CountSentSince(_ context.Context, _ uuid.UUID, since time.Time) (int, error) {
	if f.now.Sub(since) <= 2*time.Hour {
		return f.hourly, nil
	}
	return f.daily, nil
}

func sub(tz, quietStart, quietEnd string, maxHour, maxDay int) *model.Subscription {
	s := &model.Subscription{
		UserID:     uuid.New(),
		Timezone:   tz,
		MaxPerHour: maxHour,
		MaxPerDay:  maxDay,
	}
	if quietStart != "" {
		s.QuietHoursStart = &quietStart
	}
	if quietEnd != "" {
		s.QuietHoursEnd = &quietEnd
	}
	return s
}

// at builds a UTC instant whose wall clock in UTC is the given hour/min.
func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestCheck_QuietHoursWraparound(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{})
	s := sub("UTC", "22:00", "08:00", 5, 20)

	cases := []struct {
		now      time.Time
		decision throttle.Decision
	}{
		{at(23, 30), throttle.DecisionQuietHours},
		{at(3, 0), throttle.DecisionQuietHours},
		{at(22, 0), throttle.DecisionQuietHours}, // inclusive start
		{at(7, 59), throttle.DecisionQuietHours},
		{at(8, 0), throttle.DecisionAllow}, // exclusive end
		{at(9, 0), throttle.DecisionAllow},
		{at(12, 0), throttle.DecisionAllow},
		{at(21, 59), throttle.DecisionAllow},
	}
	for _, c := range cases {
		got, err := g.Check(context.Background(), s, c.now)
		require.NoError(t, err)
		assert.Equal(t, c.decision, got, "at %s", c.now.Format("15:04"))
	}
}

func TestCheck_QuietHoursNonWrapping(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{})
	s := sub("UTC", "12:00", "14:00", 5, 20)

	got, err := g.Check(context.Background(), s, at(13, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionQuietHours, got)

	got, err = g.Check(context.Background(), s, at(14, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionAllow, got)
}

func TestCheck_QuietHoursUseUserTimezone(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{})
	// 23:30 in Berlin during CET is 22:30 UTC.
	s := sub("Europe/Berlin", "22:00", "08:00", 5, 20)

	got, err := g.Check(context.Background(), s, time.Date(2026, 1, 15, 22, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionQuietHours, got)

	// 10:00 Berlin = 09:00 UTC, outside the window.
	got, err = g.Check(context.Background(), s, time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionAllow, got)
}

func TestCheck_DefaultQuietHoursWhenUnset(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{})
	s := sub("UTC", "", "", 5, 20)

	got, err := g.Check(context.Background(), s, at(23, 30))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionQuietHours, got)

	got, err = g.Check(context.Background(), s, at(9, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionAllow, got)
}

func TestCheck_HourlyCap(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{now: at(12, 0), hourly: 1, daily: 1})
	s := sub("UTC", "00:00", "00:00", 1, 20) // quiet hours disabled

	got, err := g.Check(context.Background(), s, at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionHourlyCap, got)
}

func TestCheck_HourlyCapClears(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{now: at(12, 0), hourly: 0, daily: 1})
	s := sub("UTC", "00:00", "00:00", 1, 20)

	got, err := g.Check(context.Background(), s, at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionAllow, got)
}

func TestCheck_DailyCap(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{now: at(12, 0), hourly: 2, daily: 20})
	s := sub("UTC", "00:00", "00:00", 5, 20)

	got, err := g.Check(context.Background(), s, at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionDailyCap, got)
}

func TestCheck_DefaultCaps(t *testing.T) {
	// Zero-valued caps fall back to 5/hour and 20/day.
	g := throttle.NewGovernor(&fakeHistory{now: at(12, 0), hourly: 5, daily: 5})
	s := sub("UTC", "00:00", "00:00", 0, 0)

	got, err := g.Check(context.Background(), s, at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionHourlyCap, got)

	g = throttle.NewGovernor(&fakeHistory{now: at(12, 0), hourly: 4, daily: 20})
	got, err = g.Check(context.Background(), s, at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionDailyCap, got)
}

func TestCheck_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	g := throttle.NewGovernor(&fakeHistory{})
	s := sub("Not/AZone", "22:00", "08:00", 5, 20)

	got, err := g.Check(context.Background(), s, at(23, 0))
	require.NoError(t, err)
	assert.Equal(t, throttle.DecisionQuietHours, got)
}

func TestDecisionAllowed(t *testing.T) {
	assert.True(t, throttle.DecisionAllow.Allowed())
	assert.False(t, throttle.DecisionQuietHours.Allowed())
	assert.False(t, throttle.DecisionHourlyCap.Allowed())
	assert.False(t, throttle.DecisionDailyCap.Allowed())
}
