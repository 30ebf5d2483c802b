package outbox

import (
	"context"
	"fmt"
	"time"

	"cinecritic/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the processor needs. Claim moves up to limit
// pending rows to PROCESSING so concurrent processors never share a row.
// Delivery is at least once.
type Store interface {
	Claim(ctx context.Context, limit int) ([]Event, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, giveUp bool) error
}

// Sink delivers an envelope to the outside world.
type Sink interface {
	PublishEnvelope(ctx context.Context, env events.Envelope) error
}

// Metrics observes relay outcomes ("delivered", "retry", "failed").
type Metrics interface {
	OutboxRelayed(result string)
}

type Processor struct {
	store      Store
	sink       Sink
	batchSize  int
	interval   time.Duration
	maxRetries int
	logger     *zap.Logger
	metrics    Metrics
}

func NewProcessor(store Store, sink Sink, batchSize int, interval time.Duration, maxRetries int, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:      store,
		sink:       sink,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func DefaultProcessor(store Store, sink Sink, logger *zap.Logger) *Processor {
	return NewProcessor(store, sink, 100, time.Second*2, 5, logger)
}

func (p *Processor) WithMetrics(m Metrics) *Processor {
	p.metrics = m
	return p
}

// Run processes a batch every interval until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("outbox batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch relays one claimed batch and reports how many rows were
// delivered.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := p.store.Claim(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}

	delivered := 0
	for _, e := range batch {
		if err := p.sink.PublishEnvelope(ctx, e.Envelope()); err != nil {
			giveUp := e.RetryCount+1 >= p.maxRetries
			if markErr := p.store.MarkRetry(ctx, e.ID, err.Error(), giveUp); markErr != nil {
				p.logger.Error("failed to record outbox failure", zap.String("id", e.ID.String()), zap.Error(markErr))
			}
			result := "retry"
			if giveUp {
				result = "failed"
			}
			p.observe(result)
			p.logger.Warn("outbox relay failed",
				zap.String("id", e.ID.String()),
				zap.String("event_type", e.EventType),
				zap.Int("attempt", e.RetryCount+1),
				zap.Bool("gave_up", giveUp),
				zap.Error(err),
			)
			continue
		}

		if err := p.store.MarkCompleted(ctx, e.ID); err != nil {
			// left PROCESSING; it is reclaimed and redelivered once its lease expires
			p.logger.Error("failed to mark outbox event completed", zap.String("id", e.ID.String()), zap.Error(err))
			continue
		}
		delivered++
		p.observe("delivered")
	}
	return delivered, nil
}

func (p *Processor) observe(result string) {
	if p.metrics != nil {
		p.metrics.OutboxRelayed(result)
	}
}
