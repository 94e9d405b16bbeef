// Package metrics exposes Prometheus collectors for the chat server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "supportchat"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	messages    *prometheus.CounterVec
	botReplies  *prometheus.CounterVec
	moderations *prometheus.CounterVec
	wsInbound   *prometheus.CounterVec
	httpReqs    *prometheus.CounterVec
}

// New creates collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_stored_total",
			Help:      "Messages persisted, by sender type.",
		}, []string{"sender"}),
		botReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_decisions_total",
			Help:      "Bot decisions, by outcome.",
		}, []string{"outcome"}),
		moderations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_operations_total",
			Help:      "Moderation operations, by operation.",
		}, []string{"op"}),
		wsInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_inbound_total",
			Help:      "Inbound WebSocket frames, by type and result.",
		}, []string{"type", "result"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages,
		m.botReplies,
		m.moderations,
		m.wsInbound,
		m.httpReqs,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MessageStored counts a persisted message.
func (m *Metrics) MessageStored(sender string) {
	m.messages.WithLabelValues(sender).Inc()
}

// BotDecision counts a bot outcome: replied, silenced or error.
func (m *Metrics) BotDecision(outcome string) {
	m.botReplies.WithLabelValues(outcome).Inc()
}

// Moderation counts a moderation operation.
func (m *Metrics) Moderation(op string) {
	m.moderations.WithLabelValues(op).Inc()
}

// WSInbound counts an inbound socket frame.
func (m *Metrics) WSInbound(typ, result string) {
	m.wsInbound.WithLabelValues(typ, result).Inc()
}

// HTTPRequest counts a served request.
func (m *Metrics) HTTPRequest(route, code string) {
	m.httpReqs.WithLabelValues(route, code).Inc()
}

// ObserveHub exposes live connection gauges backed by the given functions.
func (m *Metrics) ObserveHub(clients func() int, admins func() int, dropped func() int64) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Registered WebSocket clients.",
		}, func() float64 { return float64(clients()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_admin_clients",
			Help:      "Clients subscribed to the admin room.",
		}, func() float64 { return float64(admins()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_events_dropped_total",
			Help:      "Events skipped because a client buffer was full.",
		}, func() float64 { return float64(dropped()) }),
	)
}
