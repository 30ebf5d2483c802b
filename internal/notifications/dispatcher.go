package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"cinecritic/internal/events"

	"go.uber.org/zap"
)

// Broadcaster delivers a frame to every session in a hub group.
type Broadcaster interface {
	Broadcast(ctx context.Context, group string, payload []byte) error
}

// Metrics is optional; the dispatcher reports each attempt to it.
type Metrics interface {
	NotificationSent(kind string)
	NotificationFailed(kind string)
}

// Dispatcher subscribes to the event bus and pushes one notification per
// event to the administrators group. Delivery is best effort: no retries and
// no queueing.
type Dispatcher struct {
	broadcaster Broadcaster
	group       string
	logger      *zap.Logger
	metrics     Metrics
}

func NewDispatcher(broadcaster Broadcaster, group string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if group == "" {
		group = events.GroupAdministrators
	}
	return &Dispatcher{broadcaster: broadcaster, group: group, logger: logger}
}

func (d *Dispatcher) WithMetrics(m Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Register subscribes the dispatcher to every event type it can translate.
func (d *Dispatcher) Register(bus *events.Bus) {
	for _, t := range []events.EventType{
		events.EventCommentCreated,
		events.EventCommentApproved,
		events.EventCommentRejected,
		events.EventMovieCreated,
		events.EventMovieDeleted,
	} {
		bus.Subscribe(t, d)
	}
}

func (d *Dispatcher) Handle(ctx context.Context, event events.DomainEvent) error {
	n, ok := FromEvent(event)
	if !ok {
		return nil
	}

	frame, err := json.Marshal(Frame{Method: HubMethod, Payload: n})
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", n.Kind(), err)
	}

	if err := d.broadcaster.Broadcast(ctx, d.group, frame); err != nil {
		if d.metrics != nil {
			d.metrics.NotificationFailed(n.Kind())
		}
		return fmt.Errorf("broadcast %s notification: %w", n.Kind(), err)
	}

	if d.metrics != nil {
		d.metrics.NotificationSent(n.Kind())
	}
	d.logger.Debug("notification dispatched",
		zap.String("type", n.Kind()),
		zap.String("group", d.group),
		zap.String("movie_id", event.AggregateID().String()))
	return nil
}
