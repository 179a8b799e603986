package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveCommand("place_limit", "ok", 0.001)
	m.ObserveCommand("place_limit", "ok", 0.002)
	m.ObserveError("rejection")
	m.ObserveFill(1, 5)
	m.ObserveFill(1, 3)
	m.SetResting(1, "ask", 4)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("place_limit", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("rejection")))
	require.Equal(t, 8.0, testutil.ToFloat64(m.FilledSize.WithLabelValues("1")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.RestingOrders.WithLabelValues("1", "ask")))

	_, err = New(reg)
	require.Error(t, err, "registering twice must fail")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("cancel", "ok", 1)
	m.ObserveFill(1, 1)
	m.ObserveBroadcast("acked")
}
