package domain

import "time"

// Security event types emitted by the authentication core.
const (
	EventLoginSucceeded       = "auth.login.succeeded"
	EventLoginFailed          = "auth.login.failed"
	EventLockoutTriggered     = "auth.lockout.triggered"
	EventUserRegistered       = "auth.user.registered"
	EventCredentialRegistered = "auth.credential.registered"
)

// SecurityEvent describes an authentication outcome published for downstream
// consumers. Identifiers are masked by the publisher before leaving the
// process; the raw email never appears on the wire.
type SecurityEvent struct {
	EventID  string
	Type     string
	UserID   *int64
	Email    string
	IP       string
	At       time.Time
	Metadata map[string]string
}
