package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dreznev/authcore/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes the sanitized view of a user returned by the API.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Login string `json:"login"`
}

// LoginRequest defines the payload for the password login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required,min=8"`
}

// SessionResponse is returned whenever a login or registration establishes a
// session.
type SessionResponse struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

// CeremonyBeginRequest starts a credential ceremony. Email is required for
// registration; for login an empty email requests a discoverable assertion.
type CeremonyBeginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CeremonyBeginResponse carries the challenge options together with the opaque
// ceremony id the client must echo back on finish.
type CeremonyBeginResponse struct {
	CeremonyID string `json:"ceremony_id"`
	Options    any    `json:"options"`
}

// CeremonyFinishRequest completes a credential ceremony. Credential holds the
// authenticator response verbatim; it is parsed by the ceremony library.
type CeremonyFinishRequest struct {
	CeremonyID string          `json:"ceremony_id" binding:"required"`
	Credential json.RawMessage `json:"credential" binding:"required"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newUserSummary converts a session subject to a summary suitable for API
// responses.
func newUserSummary(subject domain.SessionSubject) UserSummary {
	return UserSummary{
		ID:    subject.ID,
		Name:  subject.Name,
		Email: subject.Email,
		Login: subject.Login,
	}
}
