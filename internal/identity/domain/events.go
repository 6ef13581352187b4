package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
)

const (
	AggregateType = "User"

	RoutingKeyUserRegistered = "identity.user.registered"
	RoutingKeyUserUpdated    = "identity.user.updated"
)

// UserRegistered is emitted when a new account is created.
type UserRegistered struct {
	sharedDomain.BaseEvent
	Email   string `json:"email"`
	Country string `json:"country"`
}

// NewUserRegistered creates a UserRegistered event.
func NewUserRegistered(userID uuid.UUID, email, country string, now time.Time) UserRegistered {
	return UserRegistered{
		BaseEvent: sharedDomain.NewBaseEvent(userID, AggregateType, RoutingKeyUserRegistered, now),
		Email:     email,
		Country:   country,
	}
}

// UserUpdated is emitted when the profile changes.
type UserUpdated struct {
	sharedDomain.BaseEvent
	Country string `json:"country"`
}

// NewUserUpdated creates a UserUpdated event.
func NewUserUpdated(userID uuid.UUID, country string, now time.Time) UserUpdated {
	return UserUpdated{
		BaseEvent: sharedDomain.NewBaseEvent(userID, AggregateType, RoutingKeyUserUpdated, now),
		Country:   country,
	}
}
