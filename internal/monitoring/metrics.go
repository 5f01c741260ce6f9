package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Ticket redemption decisions by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_sessions_active",
			Help: "Currently open payment reconciliation sessions",
		},
	)

	observations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_observations_total",
			Help: "Status observations by source and how they were applied",
		},
		[]string{"source", "result"},
	)

	terminalNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_terminal_total",
			Help: "Terminal callbacks fired per final status",
		},
		[]string{"status"},
	)

	pollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconcile_poll_duration_seconds",
			Help:    "Duration of poll reads against the status store",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
)

// TrackRedemption records one validate decision.
func TrackRedemption(outcome, reason string) {
	redemptions.WithLabelValues(outcome, reason).Inc()
}

// SessionOpened and SessionClosed maintain the active session gauge.
func SessionOpened() { activeSessions.Inc() }
func SessionClosed() { activeSessions.Dec() }

// TrackObservation records one push/poll observation. result is one of
// "applied", "duplicate", "violation", "discarded".
func TrackObservation(source, result string) {
	observations.WithLabelValues(source, result).Inc()
}

// TrackTerminal records an onTerminal invocation.
func TrackTerminal(status string) {
	terminalNotifications.WithLabelValues(status).Inc()
}

// TrackPoll records the latency of a single poll read.
func TrackPoll(d time.Duration) {
	pollDuration.Observe(d.Seconds())
}
