package application

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/billora/internal/identity/domain"
)

// ProfileCountryResolver reads the billing country from the user's profile.
// A missing user resolves to "" so the tax table default applies.
type ProfileCountryResolver struct {
	users domain.UserRepository
}

func NewProfileCountryResolver(users domain.UserRepository) *ProfileCountryResolver {
	return &ProfileCountryResolver{users: users}
}

func (r *ProfileCountryResolver) CountryFor(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}
	return user.Profile().Country, nil
}
