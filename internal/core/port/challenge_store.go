package port

import (
	"context"
	"time"
)

// ChallengeStore holds in-flight WebAuthn ceremony state between the begin and
// finish steps. Entries are single use and expire on their own; Take removes
// the entry so a challenge can never be replayed.
type ChallengeStore interface {
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error

	// Take returns the stored payload and deletes it atomically. Returns
	// repository.ErrNotFound when the id is unknown or already consumed.
	Take(ctx context.Context, id string) ([]byte, error)
}
