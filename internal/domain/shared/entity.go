package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by every persisted domain object.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the identity and timestamps shared by all entities.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity assigns a fresh uuid and stamps both timestamps.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// Touch refreshes UpdatedAt after a mutation.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}
