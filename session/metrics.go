package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasjlepore/fit-coach/feedback"
)

const metricsNamespace = "fitcoach"

var _ feedback.Observer = (*Metrics)(nil)

// Metrics holds the session driver's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SamplesTotal          prometheus.Counter
	RuleVerdicts          *prometheus.CounterVec
	FeedbackTotal         *prometheus.CounterVec
	GenerationFailures    *prometheus.CounterVec
	GenerationDuration    prometheus.Histogram
	SessionsStartedTotal  prometheus.Counter
	GenerationsInProgress prometheus.Gauge
}

// NewMetrics builds unregistered collectors.
func NewMetrics() *Metrics {
	m := new(Metrics)

	m.SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "samples_total",
			Help:      "the number of raw samples accepted by active sessions",
		},
	)

	m.RuleVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rule_verdicts_total",
			Help:      "the number of polls decided, by deciding rule and verdict",
		},
		[]string{"rule", "verdict"},
	)

	m.FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_total",
			Help:      "the number of feedback entries appended to history",
		},
		[]string{"rule"},
	)

	m.GenerationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "generation_failures_total",
			Help:      "the number of failed feedback generations",
		},
		[]string{"rule"},
	)

	m.GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "generation_duration_seconds",
			Help:      "the latency of feedback generation",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	m.SessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_started_total",
			Help:      "the number of workout sessions started",
		},
	)

	m.GenerationsInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "generations_in_progress",
			Help:      "1 while a feedback generation is pending",
		},
	)

	return m
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.SamplesTotal,
		m.RuleVerdicts,
		m.FeedbackTotal,
		m.GenerationFailures,
		m.GenerationDuration,
		m.SessionsStartedTotal,
		m.GenerationsInProgress,
	)
}

func (m *Metrics) sampleAdded() {
	if m == nil {
		return
	}
	m.SamplesTotal.Inc()
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStartedTotal.Inc()
}

func (m *Metrics) generationPending(pending bool) {
	if m == nil {
		return
	}
	if pending {
		m.GenerationsInProgress.Set(1)
		return
	}
	m.GenerationsInProgress.Set(0)
}

func (m *Metrics) feedbackAppended(rule string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.WithLabelValues(rule).Inc()
}

// Decided implements feedback.Observer.
func (m *Metrics) Decided(d feedback.Decision) {
	if m == nil {
		return
	}
	rule := d.Rule
	if rule == "" {
		rule = "none"
	}
	m.RuleVerdicts.WithLabelValues(rule, d.Verdict.String()).Inc()
}

// Generated implements feedback.Observer.
func (m *Metrics) Generated(rule string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.GenerationDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.GenerationFailures.WithLabelValues(rule).Inc()
	}
}
