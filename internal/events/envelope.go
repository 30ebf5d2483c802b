package events

import (
	"encoding/json"
	"fmt"
	"time"
)

type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a domain event for transports that leave the process.
func NewEnvelope(event DomainEvent) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return Envelope{
		EventType:     string(event.Type()),
		AggregateType: AggregateTypeMovie,
		AggregateID:   event.AggregateID().String(),
		OccurredAt:    event.OccurredAt().UTC(),
		Payload:       payload,
	}, nil
}
