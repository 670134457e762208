package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveCreate("created", 0.01)
	m.ObserveCreate("slot_conflict", 0.02)
	m.ObserveCreate("slot_conflict", 0.03)
	m.ObserveTransition("pending", "confirmed", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("slot_conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("pending", "confirmed", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.createLatency))
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveCreate("created", 0.1)
	m.ObserveTransition("pending", "cancelled", "ok")
}
