package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
)

// User is an account that owns subscriptions and payment methods.
type User struct {
	sharedDomain.BaseAggregateRoot
	email         Email
	passwordHash  string
	active        bool
	emailVerified bool
	lastLoginAt   *time.Time
	profile       Profile
}

// NewUser creates an active user. passwordHash must already be hashed.
func NewUser(email Email, passwordHash string, profile Profile, now time.Time) *User {
	u := &User{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		email:             email,
		passwordHash:      passwordHash,
		active:            true,
		profile:           profile,
	}
	u.AddDomainEvent(NewUserRegistered(u.ID(), email.String(), profile.Country, now))
	return u
}

// UserState carries persisted fields for RehydrateUser.
type UserState struct {
	ID            uuid.UUID
	Email         Email
	PasswordHash  string
	Active        bool
	EmailVerified bool
	LastLoginAt   *time.Time
	Profile       Profile
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RehydrateUser rebuilds a user from storage.
func RehydrateUser(st UserState) *User {
	return &User{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(st.ID, st.CreatedAt, st.UpdatedAt), 1),
		email:         st.Email,
		passwordHash:  st.PasswordHash,
		active:        st.Active,
		emailVerified: st.EmailVerified,
		lastLoginAt:   st.LastLoginAt,
		profile:       st.Profile,
	}
}

func (u *User) Email() Email            { return u.email }
func (u *User) PasswordHash() string    { return u.passwordHash }
func (u *User) IsActive() bool          { return u.active }
func (u *User) EmailVerified() bool     { return u.emailVerified }
func (u *User) LastLoginAt() *time.Time { return u.lastLoginAt }
func (u *User) Profile() Profile        { return u.profile }

// RecordLogin stamps the last successful login.
func (u *User) RecordLogin(now time.Time) {
	t := now.UTC()
	u.lastLoginAt = &t
	u.TouchAt(now)
}

// UpdateProfile replaces the profile. Nothing happens when it is unchanged.
func (u *User) UpdateProfile(p Profile, now time.Time) {
	if u.profile == p {
		return
	}
	u.profile = p
	u.TouchAt(now)
	u.AddDomainEvent(NewUserUpdated(u.ID(), p.Country, now))
}

// SetActive enables or disables the account.
func (u *User) SetActive(active bool, now time.Time) {
	if u.active == active {
		return
	}
	u.active = active
	u.TouchAt(now)
}

// VerifyEmail marks the address as confirmed.
func (u *User) VerifyEmail(now time.Time) {
	if u.emailVerified {
		return
	}
	u.emailVerified = true
	u.TouchAt(now)
}
