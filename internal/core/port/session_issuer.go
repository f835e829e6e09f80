package port

import (
	"context"

	"github.com/dreznev/authcore/internal/core/domain"
)

// SessionIssuer establishes a session for an authenticated user. It consumes
// the sanitized subject only; the raw user record never reaches it.
type SessionIssuer interface {
	Establish(ctx context.Context, subject domain.SessionSubject) (string, error)
}
