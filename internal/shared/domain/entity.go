package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything with an identity that outlives its attribute changes:
// plans, subscriptions, invoices and users.
type Entity interface {
	ID() uuid.UUID
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Equals(other Entity) bool
}

// BaseEntity stores identity and UTC audit timestamps. Timestamps always
// come from a Clock so renewal runs stamp records with the run's instant.
type BaseEntity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

func NewBaseEntityAt(now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{id: uuid.New(), createdAt: now, updatedAt: now}
}

// RehydrateBaseEntity restores an entity loaded from storage.
func RehydrateBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{id: id, createdAt: createdAt, updatedAt: updatedAt}
}

func (e BaseEntity) ID() uuid.UUID        { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

func (e *BaseEntity) TouchAt(now time.Time) {
	e.updatedAt = now.UTC()
}

// Equals compares identity only.
func (e BaseEntity) Equals(other Entity) bool {
	return other != nil && e.id == other.ID()
}
