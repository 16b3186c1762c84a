package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is raised by aggregates on state changes. Events are
// accumulated on the aggregate and drained after a successful save.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// BaseDomainEvent carries the fields every event shares.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	AggID     uuid.UUID `json:"aggregate_id"`
	AggType   string    `json:"aggregate_type"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func (e *BaseDomainEvent) AggregateID() uuid.UUID {
	return e.AggID
}

func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// NewBaseDomainEvent stamps a fresh event id and timestamp.
func NewBaseDomainEvent(eventType, aggType string, aggID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		AggID:     aggID,
		AggType:   aggType,
	}
}
