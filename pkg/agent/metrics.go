package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dialogue engine's Prometheus collectors.
type Metrics struct {
	Utterances         *prometheus.CounterVec
	StateTransitions   *prometheus.CounterVec
	CaptureErrors      *prometheus.CounterVec
	SynthesisFallbacks *prometheus.CounterVec
	StoreErrors        *prometheus.CounterVec
	RemindersSaved     prometheus.Counter
	RemindersDeleted   prometheus.Counter
	Recording          prometheus.Gauge
	TurnDuration       prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memora",
			Name:      "utterances_total",
			Help:      "Recognized utterances by how the engine handled them.",
		}, []string{"outcome"}),
		StateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memora",
			Name:      "state_transitions_total",
			Help:      "Conversation state transitions.",
		}, []string{"from", "to"}),
		CaptureErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memora",
			Name:      "capture_errors_total",
			Help:      "Recognition attempts that ended in an error, by kind.",
		}, []string{"kind"}),
		SynthesisFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memora",
			Name:      "synthesis_fallbacks_total",
			Help:      "Synthesis providers that failed and were skipped.",
		}, []string{"provider"}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memora",
			Name:      "store_errors_total",
			Help:      "Reminder store calls that failed.",
		}, []string{"op"}),
		RemindersSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: "memora",
			Name:      "reminders_saved_total",
			Help:      "Reminders created by voice or typed input.",
		}),
		RemindersDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "memora",
			Name:      "reminders_deleted_total",
			Help:      "Reminders deleted after confirmation.",
		}),
		Recording: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "memora",
			Name:      "recording",
			Help:      "1 while a recognition attempt is live.",
		}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memora",
			Name:      "turn_duration_seconds",
			Help:      "Time from a final transcript to the end of its dialogue turn.",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 16},
		}),
	}
}

// ObserveFallback counts a synthesis provider failure. It matches the
// arbiter's OnFallback hook.
func (m *Metrics) ObserveFallback(provider string, _ error) {
	m.SynthesisFallbacks.WithLabelValues(provider).Inc()
}
