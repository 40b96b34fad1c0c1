package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when creating a user with an email that is
	// already registered.
	ErrEmailTaken = errors.New("email already registered")
)

type UserRepository interface {
	Create(ctx context.Context, u *UserProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*UserProfile, error)
}
