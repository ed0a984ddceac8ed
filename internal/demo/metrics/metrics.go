package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the demo session provider.
type Metrics struct {
	// Uploads by document type
	DocumentsUploaded *prometheus.CounterVec

	// Background transitions by target status ("processing", "verified")
	Transitions *prometheus.CounterVec

	// Timers superseded by a re-upload or cancelled by a reset
	TimersCancelled prometheus.Counter

	// Persistence failures by operation ("load", "save", "clear")
	StoreFailures *prometheus.CounterVec

	// Save latency
	SaveLatency prometheus.Histogram

	// Mounted providers
	ActiveSessions prometheus.Gauge
}

// New registers the demo metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		DocumentsUploaded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decentrakyc_demo_documents_uploaded_total",
			Help: "Total simulated document uploads by document type",
		}, []string{"type"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decentrakyc_demo_document_transitions_total",
			Help: "Timer-driven document status transitions by target status",
		}, []string{"status"}),

		TimersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "decentrakyc_demo_timers_cancelled_total",
			Help: "Pending document timers cancelled before firing",
		}),

		StoreFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "decentrakyc_demo_store_failures_total",
			Help: "Demo store operations that returned an error",
		}, []string{"op"}),

		SaveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "decentrakyc_demo_store_save_duration_seconds",
			Help:    "Duration of demo record saves",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "decentrakyc_demo_active_sessions",
			Help: "Number of mounted demo session providers",
		}),
	}
}

func (m *Metrics) IncrementUpload(docType string) {
	if m != nil {
		m.DocumentsUploaded.WithLabelValues(docType).Inc()
	}
}

func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) AddTimersCancelled(n int) {
	if m != nil && n > 0 {
		m.TimersCancelled.Add(float64(n))
	}
}

func (m *Metrics) IncrementStoreFailure(op string) {
	if m != nil {
		m.StoreFailures.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) ObserveSaveLatency(d time.Duration) {
	if m != nil {
		m.SaveLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}
