package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists payment methods.
type Repository interface {
	Save(ctx context.Context, m *Method) error
	FindByID(ctx context.Context, id uuid.UUID) (*Method, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Method, error)
	// ClearDefault unsets the default flag on every method of the user.
	ClearDefault(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
