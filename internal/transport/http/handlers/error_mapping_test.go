package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dreznev/authcore/internal/repository"
	"github.com/dreznev/authcore/internal/usecase"
)

func recordMappedError(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	c.Set("trace_id", "trace-123")

	RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "something failed")

	var body ErrorResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, body
}

func TestRespondWithMappedErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"rate limited", usecase.ErrRateLimited, http.StatusTooManyRequests},
		{"invalid credential", usecase.ErrInvalidCredential, http.StatusUnauthorized},
		{"credential not found", usecase.ErrCredentialNotFound, http.StatusUnauthorized},
		{"login required", usecase.ErrLoginRequired, http.StatusUnauthorized},
		{"identity mismatch", usecase.ErrIdentityMismatch, http.StatusForbidden},
		{"already exists", usecase.ErrAlreadyExists, http.StatusConflict},
		{"expired challenge", repository.ErrNotFound, http.StatusBadRequest},
		{"store unavailable", usecase.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"unmapped", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := recordMappedError(t, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if body.Error == "" {
				t.Fatal("expected an error message in the body")
			}
			if body.TraceID != "trace-123" {
				t.Fatalf("expected trace id in body, got %q", body.TraceID)
			}
		})
	}
}

func TestRespondWithMappedErrorScopedRateLimit(t *testing.T) {
	// Scoped rate-limit errors unwrap to the shared sentinel.
	scoped := &usecase.RateLimitError{Scope: usecase.RateLimitScopeUser}

	rec, _ := recordMappedError(t, scoped)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for scoped rate limit error, got %d", rec.Code)
	}
}

func TestRespondWithMappedErrorWrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("authenticate: %w", usecase.ErrInvalidCredential)

	rec, _ := recordMappedError(t, wrapped)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrapped sentinel, got %d", rec.Code)
	}
}
