package port

import (
	"context"

	"github.com/dreznev/authcore/internal/core/domain"
)

// CredentialRepository exposes persistence behavior for public-key credentials.
type CredentialRepository interface {
	// FindByID looks up a credential by its globally unique id, joined with the
	// owning user. Returns repository.ErrNotFound if absent.
	FindByID(ctx context.Context, credentialID string) (*domain.OwnedCredential, error)

	// ListByUser returns all credentials linked to the user, empty when none.
	ListByUser(ctx context.Context, userID int64) ([]domain.Credential, error)

	// Insert creates a new credential row. A duplicate credential id surfaces
	// as repository.ErrConflict.
	Insert(ctx context.Context, credential domain.Credential) error

	// BumpCounter raises the stored signature counter to the supplied value.
	// The counter is monotonic; implementations must never lower it.
	BumpCounter(ctx context.Context, credentialID string, counter uint32) error
}

// RegistrationStore persists the outcome of a completed credential
// registration ceremony: the user upsert and the credential insert commit in
// one transaction, so a crash between the two cannot leave a credential
// pointing at a user id that never committed.
type RegistrationStore interface {
	PersistRegistration(ctx context.Context, user domain.User, credential domain.Credential) (domain.User, error)
}
