// Package rabbitmq forwards committed domain events to a RabbitMQ topic
// exchange so services outside this process can follow moderation activity.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cinecritic/internal/events"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	connectAttempts = 5
	publishTimeout  = 5 * time.Second
)

// channel is the slice of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Publisher publishes event envelopes with the event type as routing key.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  channel
	exchange string
	service  string
	logger   *zap.Logger
}

// Dial connects with retries, enables publisher confirms and declares the
// exchange.
func Dial(ctx context.Context, url, exchange, service string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var conn *amqp.Connection
	operation := func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectAttempts-1), ctx)
	err := backoff.RetryNotify(operation, b, func(err error, d time.Duration) {
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			zap.Duration("backoff", d),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p, err := newPublisher(ch, exchange, service, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	logger.Info("RabbitMQ publisher connected", zap.String("exchange", exchange))
	return p, nil
}

func newPublisher(ch channel, exchange, service string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		service:  service,
		logger:   logger,
	}, nil
}

// Register forwards every committed event. Use it when no outbox is
// configured; delivery is then best effort.
func (p *Publisher) Register(bus *events.Bus) {
	bus.SubscribeAll(events.HandlerFunc(p.Handle))
}

// Handle publishes one event straight from the bus.
func (p *Publisher) Handle(ctx context.Context, event events.DomainEvent) error {
	env, err := events.NewEnvelope(event)
	if err != nil {
		return err
	}
	return p.PublishEnvelope(ctx, env)
}

// PublishEnvelope publishes env and waits for the broker's confirm. It is
// the sink of the outbox relay.
func (p *Publisher) PublishEnvelope(ctx context.Context, env events.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    env.OccurredAt,
		Type:         env.EventType,
		Headers: amqp.Table{
			"x-service":      p.service,
			"x-aggregate-id": env.AggregateID,
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(publishCtx, p.exchange, env.EventType, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	if confirm != nil {
		acked, err := confirm.WaitContext(publishCtx)
		if err != nil {
			return fmt.Errorf("publish confirmation: %w", err)
		}
		if !acked {
			return fmt.Errorf("message was not acknowledged by broker")
		}
	}

	p.logger.Debug("Event published",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", env.EventType),
		zap.String("aggregate_id", env.AggregateID),
	)
	return nil
}

func (p *Publisher) IsHealthy() bool {
	return p != nil && p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error("Failed to close channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error("Failed to close connection", zap.Error(err))
			return err
		}
	}
	return nil
}
