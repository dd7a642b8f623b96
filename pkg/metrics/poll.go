package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PollMetrics records outcomes of drive poll runs and the shared circuit state.
type PollMetrics struct {
	duration     *prometheus.HistogramVec
	recordings   *prometheus.CounterVec
	circuitState prometheus.Gauge
}

// NewPollMetrics registers the poll metrics on the provided registerer.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	if reg == nil {
		return &PollMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drive_poll_duration_seconds",
		Help:    "Duration of drive poll runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	recordings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drive_poll_recordings_total",
		Help: "Recordings handled by poll runs, by outcome.",
	}, []string{"outcome"})
	circuitState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "drive_circuit_state",
		Help: "Circuit breaker state for the drive client (0 closed, 1 half-open, 2 open).",
	})
	reg.MustRegister(duration, recordings, circuitState)
	return &PollMetrics{
		duration:     duration,
		recordings:   recordings,
		circuitState: circuitState,
	}
}

// ObserveRun records the duration of one poll run.
func (p *PollMetrics) ObserveRun(trigger string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// AddOutcome adds n recordings to the given outcome counter
// (processed, errors, skipped).
func (p *PollMetrics) AddOutcome(outcome string, n int) {
	if p == nil || p.recordings == nil || n <= 0 {
		return
	}
	p.recordings.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

// SetCircuitState publishes the breaker state for dashboards.
func (p *PollMetrics) SetCircuitState(state float64) {
	if p == nil || p.circuitState == nil {
		return
	}
	p.circuitState.Set(state)
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
