package port

import (
	"context"

	"github.com/dreznev/authcore/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	// FindByEmail returns the user whose email matches exactly, or
	// repository.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// Insert creates a new user row and returns it with the store-assigned id.
	// A duplicate email surfaces as repository.ErrConflict.
	Insert(ctx context.Context, user domain.User) (domain.User, error)

	// UpsertOnIDConflict inserts the user, or if a row with the same id already
	// exists updates only name and email, returning the committed row. Used by
	// the registrar so re-registering a known user mutates nothing materially.
	UpsertOnIDConflict(ctx context.Context, user domain.User) (domain.User, error)
}
