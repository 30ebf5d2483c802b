package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"cinecritic/internal/outbox"

	"github.com/google/uuid"
)

// claimLease is how long a PROCESSING row stays with the processor that
// claimed it before another one may take it over.
const claimLease = time.Minute

const outboxColumns = `id, event_type, aggregate_type, aggregate_id, payload, status, retry_count, error, created_at, updated_at, processed_at`

type outboxRepository struct {
	db  DBTX
	now func() time.Time
}

func NewOutboxRepository(db DBTX) OutboxRepository {
	return &outboxRepository{db: db, now: time.Now}
}

func (r *outboxRepository) Append(ctx context.Context, evs ...outbox.Event) error {
	for _, event := range evs {
		_, err := r.db.ExecContext(ctx, `
        INSERT INTO outbox_events (`+outboxColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `,
			event.ID,
			event.EventType,
			event.AggregateType,
			event.AggregateID,
			event.Payload,
			event.Status,
			event.RetryCount,
			event.Error,
			event.CreatedAt,
			event.UpdatedAt,
			event.ProcessedAt,
		)
		if err != nil {
			return fmt.Errorf("append outbox event %s: %w", event.EventType, err)
		}
	}
	return nil
}

func (r *outboxRepository) Claim(ctx context.Context, limit int) ([]outbox.Event, error) {
	now := r.now()
	rows, err := r.db.QueryContext(ctx, `
        UPDATE outbox_events
        SET status = $1, updated_at = $2
        WHERE id IN (
            SELECT id FROM outbox_events
            WHERE status = $3 OR (status = $1 AND updated_at < $4)
            ORDER BY created_at ASC
            LIMIT $5
            FOR UPDATE SKIP LOCKED
        )
        RETURNING `+outboxColumns,
		outbox.StatusProcessing, now, outbox.StatusPending, now.Add(-claimLease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []outbox.Event
	for rows.Next() {
		var (
			event       outbox.Event
			status      string
			processedAt sql.NullTime
		)
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.AggregateType,
			&event.AggregateID,
			&event.Payload,
			&status,
			&event.RetryCount,
			&event.Error,
			&event.CreatedAt,
			&event.UpdatedAt,
			&processedAt,
		); err != nil {
			return nil, err
		}
		event.Status = outbox.Status(status)
		if processedAt.Valid {
			event.ProcessedAt = &processedAt.Time
		}
		claimed = append(claimed, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery's order
	sort.SliceStable(claimed, func(i, j int) bool {
		return claimed[i].CreatedAt.Before(claimed[j].CreatedAt)
	})
	return claimed, nil
}

func (r *outboxRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
        UPDATE outbox_events
        SET status = $1, processed_at = $2, updated_at = $2, error = ''
        WHERE id = $3
    `, outbox.StatusCompleted, now, id)
	return err
}

// MarkRetry records a failed attempt. The row goes back to PENDING unless
// giveUp is set, in which case it is parked as FAILED.
func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errorMsg string, giveUp bool) error {
	status := outbox.StatusPending
	if giveUp {
		status = outbox.StatusFailed
	}
	_, err := r.db.ExecContext(ctx, `
        UPDATE outbox_events
        SET status = $1, retry_count = retry_count + 1, error = $2, updated_at = $3
        WHERE id = $4
    `, status, errorMsg, r.now(), id)
	return err
}
