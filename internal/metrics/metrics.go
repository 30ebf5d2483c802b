// Package metrics exposes the Prometheus collectors for the hub, the
// notification dispatcher, the event bus, the outbox relay and the client
// token pipeline.
package metrics

import (
	"context"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HubConnections        prometheus.Gauge
	HubClientsDropped     prometheus.Counter
	NotificationsSent     *prometheus.CounterVec
	NotificationsFailed   *prometheus.CounterVec
	EventHandlerFailures  *prometheus.CounterVec
	TokenRefreshes        *prometheus.CounterVec
	ModerationTransitions *prometheus.CounterVec
	OutboxRelays          *prometheus.CounterVec
}

// New registers the collectors with reg. Passing nil uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		HubConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cinecritic_hub_connections",
			Help: "Current number of connected administrator sessions",
		}),
		HubClientsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cinecritic_hub_clients_dropped_total",
			Help: "Total number of sessions pruned during broadcast because they were closed or too slow",
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinecritic_notifications_sent_total",
			Help: "Total number of notifications broadcast to administrators",
		}, []string{"type"}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinecritic_notifications_failed_total",
			Help: "Total number of notifications that could not be broadcast",
		}, []string{"type"}),
		EventHandlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinecritic_event_handler_failures_total",
			Help: "Total number of domain event handler errors swallowed after commit",
		}, []string{"event"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinecritic_token_refreshes_total",
			Help: "Total number of client token refresh attempts by result",
		}, []string{"result"}),
		ModerationTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinecritic_moderation_transitions_total",
			Help: "Total number of committed comment status changes",
		}, []string{"status"}),
		OutboxRelays: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cinecritic_outbox_relays_total",
			Help: "Total number of outbox relay attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) SetConnections(n int) {
	m.HubConnections.Set(float64(n))
}

func (m *Metrics) ClientDropped() {
	m.HubClientsDropped.Inc()
}

func (m *Metrics) NotificationSent(kind string) {
	m.NotificationsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) NotificationFailed(kind string) {
	m.NotificationsFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) HandlerFailed(eventType string) {
	m.EventHandlerFailures.WithLabelValues(eventType).Inc()
}

func (m *Metrics) TokenRefresh(result string) {
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) CommentTransitioned(status string) {
	m.ModerationTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) OutboxRelayed(result string) {
	m.OutboxRelays.WithLabelValues(result).Inc()
}

// Register installs the metrics as the bus failure observer and counts
// committed status changes.
func (m *Metrics) Register(bus *events.Bus) {
	bus.SetFailureObserver(m)
	bus.Subscribe(events.EventCommentCreated, events.HandlerFunc(m.countTransition))
	bus.Subscribe(events.EventCommentApproved, events.HandlerFunc(m.countTransition))
	bus.Subscribe(events.EventCommentRejected, events.HandlerFunc(m.countTransition))
}

func (m *Metrics) countTransition(_ context.Context, event events.DomainEvent) error {
	switch event.(type) {
	case events.CommentCreated:
		m.CommentTransitioned(string(movie.StatusPending))
	case events.CommentApproved:
		m.CommentTransitioned(string(movie.StatusApproved))
	case events.CommentRejected:
		m.CommentTransitioned(string(movie.StatusRejected))
	}
	return nil
}
