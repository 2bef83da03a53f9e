package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the duel service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	activeRooms    prometheus.Gauge
	roomsCreated   prometheus.Counter
	battles        *prometheus.CounterVec
	messages       *prometheus.CounterVec
	roomsReaped    prometheus.Counter
	droppedByLimit prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "medbattle",
			Name:      "active_rooms",
			Help:      "Rooms currently held in the registry.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medbattle",
			Name:      "rooms_created_total",
			Help:      "Rooms created since start.",
		}),
		battles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbattle",
			Name:      "battles_completed_total",
			Help:      "Completed duels by outcome.",
		}, []string{"winner", "forfeit"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbattle",
			Name:      "messages_received_total",
			Help:      "Inbound websocket messages by type.",
		}, []string{"type"}),
		roomsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medbattle",
			Name:      "rooms_reaped_total",
			Help:      "Rooms removed by the expiry reaper.",
		}),
		droppedByLimit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medbattle",
			Name:      "messages_rate_limited_total",
			Help:      "Inbound messages dropped by the per-connection rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.activeRooms, m.roomsCreated, m.battles, m.messages, m.roomsReaped, m.droppedByLimit,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RoomCreated() {
	if m == nil {
		return
	}
	m.roomsCreated.Inc()
	m.activeRooms.Inc()
}

func (m *Metrics) RoomRemoved() {
	if m == nil {
		return
	}
	m.activeRooms.Dec()
}

func (m *Metrics) RoomReaped() {
	if m == nil {
		return
	}
	m.roomsReaped.Inc()
}

func (m *Metrics) BattleCompleted(winner string, forfeit bool) {
	if m == nil {
		return
	}
	f := "false"
	if forfeit {
		f = "true"
	}
	m.battles.WithLabelValues(winner, f).Inc()
}

func (m *Metrics) MessageReceived(typ string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(typ).Inc()
}

func (m *Metrics) MessageRateLimited() {
	if m == nil {
		return
	}
	m.droppedByLimit.Inc()
}
