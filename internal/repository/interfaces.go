package repository

import (
	"context"

	"cinecritic/internal/domain/movie"
	"cinecritic/internal/events"
	"cinecritic/internal/outbox"

	"github.com/google/uuid"
)

// MovieRepository loads and stores whole aggregates. Save persists the movie
// row and synchronizes its comment set, so a comment removed from the
// aggregate is removed from storage.
type MovieRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*movie.Movie, error)
	Save(ctx context.Context, m *movie.Movie) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page, limit int) ([]*movie.Movie, int64, error)
}

// OutboxRepository stores integration events next to the state change that
// raised them and hands them to the relay.
type OutboxRepository interface {
	Append(ctx context.Context, evs ...outbox.Event) error
	Claim(ctx context.Context, limit int) ([]outbox.Event, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkRetry(ctx context.Context, id uuid.UUID, errorMsg string, giveUp bool) error
}

// UnitOfWork is what a transactional function sees: repositories bound to the
// transaction and the collector for events raised inside it.
type UnitOfWork struct {
	Movies MovieRepository
	Events *events.Collector
}

// Record pulls the aggregate's queued events into the transaction's collector.
func (u UnitOfWork) Record(m *movie.Movie) {
	u.Events.Add(m.PullEvents()...)
}

// TxRunner executes fn inside one transaction. Events recorded on the unit
// of work are handed to the after-commit hook only when the commit succeeds;
// a failed fn or commit discards them.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// AfterCommitFunc receives the committed transaction's events in the order
// they were recorded.
type AfterCommitFunc func(ctx context.Context, evs ...events.DomainEvent)
