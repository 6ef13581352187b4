package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/billora/internal/identity/domain"
)

// UserView is the outward representation of a user. The password hash never leaves the service.
type UserView struct {
	ID            uuid.UUID      `json:"id"`
	Email         string         `json:"email"`
	Active        bool           `json:"active"`
	EmailVerified bool           `json:"email_verified"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	Profile       domain.Profile `json:"profile"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewUserView(u *domain.User) UserView {
	return UserView{
		ID:            u.ID(),
		Email:         u.Email().String(),
		Active:        u.IsActive(),
		EmailVerified: u.EmailVerified(),
		LastLoginAt:   u.LastLoginAt(),
		Profile:       u.Profile(),
		CreatedAt:     u.CreatedAt(),
		UpdatedAt:     u.UpdatedAt(),
	}
}
