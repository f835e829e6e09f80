package port

import (
	"context"
	"time"

	"github.com/dreznev/authcore/internal/core/domain"
)

// AttemptLedger is the append-only record of login attempts backing the
// lockout policy. Rows are never mutated or deleted by this core; windowed
// counting is done purely by filtering on timestamp.
type AttemptLedger interface {
	// CountFailures returns the number of failed attempts matching the
	// dimension and key with a timestamp strictly greater than since. The key
	// is the IP address for AttemptDimensionIP and the decimal user id for
	// AttemptDimensionUser.
	CountFailures(ctx context.Context, dimension domain.AttemptDimension, key string, since time.Time) (int, error)

	// Record appends one immutable attempt row.
	Record(ctx context.Context, attempt domain.LoginAttempt) error
}
