package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all engine metrics
type Metrics struct {
	// Cycle metrics
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	PostingsScanned   prometheus.Counter
	MatchesFound      prometheus.Counter
	NotificationsSent prometheus.Counter
	Suppressed        *prometheus.CounterVec
	DispatchFailures  prometheus.Counter

	// Push gateway metrics
	PushAttempts  *prometheus.CounterVec
	PushLatency   prometheus.Histogram
	TokensExpired prometheus.Counter
}

// New creates and registers all engine metrics
func New(namespace string) *Metrics {
	return &Metrics{
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of cycle runs by result",
		}, []string{"result"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent running one matching cycle",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		PostingsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_scanned_total",
			Help:      "Total number of job postings evaluated",
		}),
		MatchesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_found_total",
			Help:      "Total number of keyword matches found",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications sent",
		}),
		Suppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_suppressed_total",
			Help:      "Total number of suppressed notifications by reason",
		}, []string{"reason"}),
		DispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Total number of notifications that failed on every device",
		}),
		PushAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_attempts_total",
			Help:      "Total number of per-device push attempts by status",
		}, []string{"status"}),
		PushLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_duration_seconds",
			Help:      "Duration of push gateway calls",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		TokensExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_tokens_expired_total",
			Help:      "Total number of device tokens deactivated after terminal push errors",
		}),
	}
}

// Nil-safe helpers so components can run without a registry (tests).

func (m *Metrics) ObserveCycle(result string, seconds float64) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(seconds)
}

func (m *Metrics) AddScanned(postings, matches float64) {
	if m == nil {
		return
	}
	m.PostingsScanned.Add(postings)
	m.MatchesFound.Add(matches)
}

func (m *Metrics) IncSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}

func (m *Metrics) IncSuppressed(reason string) {
	if m == nil {
		return
	}
	m.Suppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncDispatchFailure() {
	if m == nil {
		return
	}
	m.DispatchFailures.Inc()
}

func (m *Metrics) ObservePush(status string, seconds float64) {
	if m == nil {
		return
	}
	m.PushAttempts.WithLabelValues(status).Inc()
	m.PushLatency.Observe(seconds)
}

func (m *Metrics) IncTokenExpired() {
	if m == nil {
		return
	}
	m.TokensExpired.Inc()
}
