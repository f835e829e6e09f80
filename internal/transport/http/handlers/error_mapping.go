package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dreznev/authcore/internal/repository"
	"github.com/dreznev/authcore/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// authErrorCases covers the sentinels shared by the authentication and
// registration endpoints.
var authErrorCases = []ErrorCase{
	{Err: usecase.ErrRateLimited, Status: http.StatusTooManyRequests, Message: "too many attempts, try again later"},
	{Err: usecase.ErrInvalidCredential, Status: http.StatusUnauthorized, Message: "invalid email or password"},
	{Err: usecase.ErrCredentialNotFound, Status: http.StatusUnauthorized, Message: "credential not recognized"},
	{Err: usecase.ErrLoginRequired, Status: http.StatusUnauthorized, Message: "log in before adding a credential to this account"},
	{Err: usecase.ErrIdentityMismatch, Status: http.StatusForbidden, Message: "session does not match the requested identity"},
	{Err: usecase.ErrAlreadyExists, Status: http.StatusConflict, Message: "account already exists"},
	{Err: repository.ErrNotFound, Status: http.StatusBadRequest, Message: "unknown or expired challenge"},
	{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
