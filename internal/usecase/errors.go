package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredential indicates an unknown email, an account without a
	// password, or a wrong password. Deliberately identical across all three
	// causes so callers cannot enumerate accounts.
	ErrInvalidCredential = errors.New("invalid email or password")
	// ErrRateLimited indicates a failure threshold was exceeded within the
	// lockout window. Match with errors.Is; the scope travels on RateLimitError.
	ErrRateLimited = errors.New("too many attempts")
	// ErrCredentialNotFound indicates the presented credential id is not
	// resolvable. The only resolution failure surfaced specifically, because
	// the challenge protocol already bound the id cryptographically.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrIdentityMismatch indicates the proposed registration identity differs
	// from the active session's account.
	ErrIdentityMismatch = errors.New("identity does not match current session")
	// ErrLoginRequired indicates adding a credential to an existing account
	// requires being authenticated as that account.
	ErrLoginRequired = errors.New("login required to add a credential")
	// ErrAlreadyExists indicates a uniqueness constraint rejected a concurrent
	// duplicate registration.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrStoreUnavailable indicates the underlying store failed. Propagated
	// as-is; retrying is the caller's decision.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RateLimitScope identifies which threshold tripped.
type RateLimitScope string

const (
	RateLimitScopeIP   RateLimitScope = "ip"
	RateLimitScopeUser RateLimitScope = "user"
)

// RateLimitError carries the tripped scope. errors.Is(err, ErrRateLimited)
// matches it regardless of scope; callers must not expose the scope to end
// clients beyond a generic retry-later message.
type RateLimitError struct {
	Scope RateLimitScope
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts (%s)", e.Scope)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func rateLimited(scope RateLimitScope) error {
	return &RateLimitError{Scope: scope}
}

// storeFailure wraps a repository error so callers match ErrStoreUnavailable
// without ever seeing raw store error text across the process boundary.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
