package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to a committed domain event.
type Handler interface {
	Handle(ctx context.Context, event DomainEvent) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event DomainEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event DomainEvent) error {
	return f(ctx, event)
}

// FailureObserver is told about every handler error swallowed by the bus.
type FailureObserver interface {
	HandlerFailed(eventType string)
}

// Bus delivers committed domain events to in-process handlers.
//
// Delivery is synchronous and in the order events are published. A failing or
// panicking handler is logged and skipped: the business transaction has already
// committed and must not be affected.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
	logger   *zap.Logger
	observer FailureObserver
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[EventType][]Handler),
		logger:   logger,
	}
}

// SetFailureObserver installs a hook counting swallowed handler failures.
func (b *Bus) SetFailureObserver(o FailureObserver) {
	b.mu.Lock()
	b.observer = o
	b.mu.Unlock()
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("handler subscribed", zap.String("event_type", string(eventType)))
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish dispatches events in order. It never returns handler errors.
func (b *Bus) Publish(ctx context.Context, events ...DomainEvent) {
	for _, event := range events {
		if event == nil {
			continue
		}
		for _, handler := range b.handlersFor(event.Type()) {
			if err := b.execute(ctx, handler, event); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", string(event.Type())),
					zap.String("aggregate_id", event.AggregateID().String()),
					zap.Error(err),
				)
				if o := b.failureObserver(); o != nil {
					o.HandlerFailed(string(event.Type()))
				}
			}
		}
	}
}

func (b *Bus) handlersFor(eventType EventType) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Handler, 0, len(b.handlers[eventType])+len(b.all))
	out = append(out, b.handlers[eventType]...)
	out = append(out, b.all...)
	return out
}

func (b *Bus) failureObserver() FailureObserver {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.observer
}

// execute runs a single handler and converts a panic into an error.
func (b *Bus) execute(ctx context.Context, handler Handler, event DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}
