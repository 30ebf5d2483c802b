package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cinecritic/internal/events"
	"cinecritic/internal/outbox"
	cinecritic_errors "cinecritic/pkg/errors"

	"go.uber.org/zap"
)

const defaultTxTimeout = 5 * time.Second

// SQLTxRunner runs units of work in a database/sql transaction and flushes
// their events after a successful commit.
type SQLTxRunner struct {
	db          *sql.DB
	afterCommit AfterCommitFunc
	timeout     time.Duration
	outbox      bool
	logger      *zap.Logger
}

func NewSQLTxRunner(db *sql.DB, afterCommit AfterCommitFunc, logger *zap.Logger) *SQLTxRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLTxRunner{db: db, afterCommit: afterCommit, timeout: defaultTxTimeout, logger: logger}
}

// WithOutbox makes every transaction also append its events to
// outbox_events, so they commit or roll back with the state change.
func (t *SQLTxRunner) WithOutbox() *SQLTxRunner {
	t.outbox = true
	return t
}

func (t *SQLTxRunner) RunInTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: transaction aborted: %v", cinecritic_errors.ErrServiceUnavailable, err)
	}

	txCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	collector := events.NewCollector()
	err := WithTx(txCtx, t.db, func(tx DBTX) error {
		if err := fn(UnitOfWork{Movies: NewMovieRepository(tx), Events: collector}); err != nil {
			return err
		}
		if !t.outbox || collector.Len() == 0 {
			return nil
		}
		return appendOutbox(txCtx, NewOutboxRepository(tx), collector.Snapshot())
	})
	if err != nil {
		if n := collector.Len(); n > 0 {
			t.logger.Debug("discarding events of rolled back transaction", zap.Int("count", n))
		}
		return err
	}

	flush(ctx, t.afterCommit, collector)
	return nil
}

func appendOutbox(ctx context.Context, repo OutboxRepository, evs []events.DomainEvent) error {
	now := time.Now()
	rows := make([]outbox.Event, 0, len(evs))
	for _, ev := range evs {
		env, err := events.NewEnvelope(ev)
		if err != nil {
			return err
		}
		rows = append(rows, outbox.FromEnvelope(env, now))
	}
	return repo.Append(ctx, rows...)
}

func flush(ctx context.Context, afterCommit AfterCommitFunc, collector *events.Collector) {
	evs := collector.Drain()
	if afterCommit == nil || len(evs) == 0 {
		return
	}
	afterCommit(ctx, evs...)
}
