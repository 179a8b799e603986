// Package metrics holds the Prometheus collectors the engine updates.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "econia"

// Metrics is the engine's collector set. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Commands        *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	Fills           *prometheus.CounterVec
	FilledSize      *prometheus.CounterVec
	RestingOrders   *prometheus.GaugeVec
	CommandDuration *prometheus.HistogramVec
	OutboxAppended  prometheus.Counter
	Broadcast       *prometheus.CounterVec
	ReplayedRecords prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by type and outcome.",
		}, []string{"type", "outcome"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Failed commands by error class.",
		}, []string{"class"}),
		Fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Fills by market.",
		}, []string{"market"}),
		FilledSize: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filled_lots_total",
			Help:      "Lots filled by market.",
		}, []string{"market"}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Orders resting on the book.",
		}, []string{"market", "side"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time to log and execute a command.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"type"}),
		OutboxAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_appended_total",
			Help:      "Events written to the outbox.",
		}),
		Broadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_total",
			Help:      "Outbox delivery attempts by outcome.",
		}, []string{"outcome"}),
		ReplayedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replayed_records_total",
			Help:      "Entry WAL records applied during replay.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.Commands, m.Rejections, m.Fills, m.FilledSize, m.RestingOrders,
		m.CommandDuration, m.OutboxAppended, m.Broadcast, m.ReplayedRecords,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Market formats a market id as a label value.
func Market(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (m *Metrics) ObserveCommand(typ, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(typ, outcome).Inc()
	m.CommandDuration.WithLabelValues(typ).Observe(seconds)
}

func (m *Metrics) ObserveError(class string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveFill(marketID, size uint64) {
	if m == nil {
		return
	}
	m.Fills.WithLabelValues(Market(marketID)).Inc()
	m.FilledSize.WithLabelValues(Market(marketID)).Add(float64(size))
}

func (m *Metrics) SetResting(marketID uint64, side string, n int) {
	if m == nil {
		return
	}
	m.RestingOrders.WithLabelValues(Market(marketID), side).Set(float64(n))
}

func (m *Metrics) ObserveOutbox(n int) {
	if m == nil {
		return
	}
	m.OutboxAppended.Add(float64(n))
}

func (m *Metrics) ObserveBroadcast(outcome string) {
	if m == nil {
		return
	}
	m.Broadcast.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveReplay() {
	if m == nil {
		return
	}
	m.ReplayedRecords.Inc()
}
