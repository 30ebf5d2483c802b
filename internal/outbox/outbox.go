// Package outbox relays integration events that were stored in the same
// transaction as the moderation change that raised them.
package outbox

import (
	"time"

	"cinecritic/internal/events"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Event is one row of the outbox_events table.
type Event struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	Status        Status
	RetryCount    int
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}

// FromEnvelope builds a pending outbox row for env.
func FromEnvelope(env events.Envelope, now time.Time) Event {
	return Event{
		ID:            uuid.New(),
		EventType:     env.EventType,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		Payload:       env.Payload,
		Status:        StatusPending,
		CreatedAt:     env.OccurredAt,
		UpdatedAt:     now,
	}
}

// Envelope rebuilds the envelope the row was created from.
func (e Event) Envelope() events.Envelope {
	return events.Envelope{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		OccurredAt:    e.CreatedAt.UTC(),
		Payload:       e.Payload,
	}
}
