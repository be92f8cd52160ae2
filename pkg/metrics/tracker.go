package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackerMetrics records payment tracking session activity.
type TrackerMetrics struct {
	started      prometheus.Counter
	outcomes     *prometheus.CounterVec
	observations *prometheus.CounterVec
	pollFailures prometheus.Counter
	anomalies    prometheus.Counter
	duration     *prometheus.HistogramVec
}

// NewTrackerMetrics registers the tracker metrics on the provided registerer.
func NewTrackerMetrics(reg prometheus.Registerer) *TrackerMetrics {
	if reg == nil {
		return &TrackerMetrics{}
	}
	started := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_tracking_sessions_started_total",
		Help: "Tracking sessions that opened their push and poll channels.",
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_tracking_sessions_finished_total",
		Help: "Tracking sessions by the way they ended.",
	}, []string{"outcome"})
	observations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_status_observations_total",
		Help: "Status snapshots fed into the merge rule, by channel.",
	}, []string{"channel", "result"})
	pollFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_status_poll_failures_total",
		Help: "Background status lookups that failed and were retried on the next tick.",
	})
	anomalies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_status_anomalies_total",
		Help: "Snapshots that tried to move a terminal payment to a different status.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_tracking_session_duration_seconds",
		Help:    "Time from opening the channels to releasing them.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})
	reg.MustRegister(started, outcomes, observations, pollFailures, anomalies, duration)
	return &TrackerMetrics{
		started:      started,
		outcomes:     outcomes,
		observations: observations,
		pollFailures: pollFailures,
		anomalies:    anomalies,
		duration:     duration,
	}
}

// IncStarted counts a session that entered pending tracking.
func (m *TrackerMetrics) IncStarted() {
	if m == nil || m.started == nil {
		return
	}
	m.started.Inc()
}

// ObserveFinished records how a pending session ended and how long it ran.
func (m *TrackerMetrics) ObserveFinished(outcome string, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.outcomes.WithLabelValues(label).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// IncObservation counts a snapshot delivered by channel and what the merge rule did with it.
func (m *TrackerMetrics) IncObservation(channel, result string) {
	if m == nil || m.observations == nil {
		return
	}
	m.observations.WithLabelValues(normalizeLabel(channel), normalizeLabel(result)).Inc()
}

// IncPollFailure counts a failed background lookup.
func (m *TrackerMetrics) IncPollFailure() {
	if m == nil || m.pollFailures == nil {
		return
	}
	m.pollFailures.Inc()
}

// IncAnomaly counts a conflicting terminal status report.
func (m *TrackerMetrics) IncAnomaly() {
	if m == nil || m.anomalies == nil {
		return
	}
	m.anomalies.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
