package domain

import "time"

// AggregateRoot guards a consistency boundary. Events it raises are drained
// into the outbox in the same transaction that saves it.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	ClearDomainEvents()
	AddDomainEvent(event DomainEvent)
	Version() int
}

// BaseAggregateRoot records pending events and the optimistic-lock version
// that repositories compare on update.
type BaseAggregateRoot struct {
	BaseEntity
	pending []DomainEvent
	version int
}

func NewBaseAggregateRoot(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntityAt(now)}
}

// RehydrateBaseAggregateRoot restores an aggregate at its stored version.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, version: version}
}

// DomainEvents never returns nil.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	if a.pending == nil {
		return []DomainEvent{}
	}
	return a.pending
}

func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

func (a *BaseAggregateRoot) Version() int {
	return a.version
}

// IncrementVersion is called by repositories after a successful save.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.version++
}
