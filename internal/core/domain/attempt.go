package domain

import "time"

// AttemptDimension selects which column of the attempt ledger a windowed
// failure count is keyed on.
type AttemptDimension string

const (
	// AttemptDimensionIP counts attempts by actor IP address.
	AttemptDimensionIP AttemptDimension = "ip"
	// AttemptDimensionUser counts attempts by resolved user id.
	AttemptDimensionUser AttemptDimension = "user"
)

// LoginAttempt is an immutable audit record of one password-path
// authentication attempt. UserID is nil when the identity could not be
// resolved. Rows are append-only; retention is an external concern.
type LoginAttempt struct {
	UserID    *int64
	IP        string
	Succeeded bool
	CreatedAt time.Time
}
