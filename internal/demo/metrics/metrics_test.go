package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementUpload("passport")
	m.IncrementUpload("passport")
	m.IncrementTransition("verified")
	m.AddTimersCancelled(2)
	m.AddTimersCancelled(0)
	m.IncrementStoreFailure("save")
	m.ObserveSaveLatency(3 * time.Millisecond)
	m.SetActiveSessions(4)

	assert.InDelta(t, 2, testutil.ToFloat64(m.DocumentsUploaded.WithLabelValues("passport")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Transitions.WithLabelValues("verified")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.TimersCancelled), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StoreFailures.WithLabelValues("save")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.ActiveSessions), 0)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementUpload("passport")
		m.IncrementTransition("processing")
		m.AddTimersCancelled(1)
		m.IncrementStoreFailure("load")
		m.ObserveSaveLatency(time.Second)
		m.SetActiveSessions(1)
	})
}
