package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dreznev/authcore/internal/repository"
)

type memoryChallengeStore struct {
	entries map[string][]byte
}

func newMemoryChallengeStore() *memoryChallengeStore {
	return &memoryChallengeStore{entries: map[string][]byte{}}
}

func (s *memoryChallengeStore) Save(_ context.Context, id string, data []byte, _ time.Duration) error {
	s.entries[id] = data
	return nil
}

func (s *memoryChallengeStore) Take(_ context.Context, id string) ([]byte, error) {
	data, ok := s.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.entries, id)
	return data, nil
}

func ceremonyTestContext(t *testing.T) *gin.Context {
	t.Helper()

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/auth/webauthn/register/finish", nil)
	return c
}

func TestCeremonyStateIsSingleUse(t *testing.T) {
	store := newMemoryChallengeStore()
	h := NewWebAuthnHandler(nil, nil, nil, nil, store, time.Minute)
	c := ceremonyTestContext(t)

	id, err := h.saveState(c, ceremonyState{Handle: []byte{0xAA, 0xBB}})
	if err != nil {
		t.Fatalf("save ceremony state: %v", err)
	}

	state, err := h.takeState(c, id)
	if err != nil {
		t.Fatalf("first take: %v", err)
	}
	if len(state.Handle) != 2 || state.Handle[0] != 0xAA {
		t.Fatalf("state did not round-trip: %+v", state)
	}

	if _, err := h.takeState(c, id); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("a consumed challenge must not be replayable, got %v", err)
	}
}

func TestTakeStateUnknownCeremony(t *testing.T) {
	h := NewWebAuthnHandler(nil, nil, nil, nil, newMemoryChallengeStore(), time.Minute)
	c := ceremonyTestContext(t)

	if _, err := h.takeState(c, "no-such-ceremony"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("unknown ceremony id must map to the not-found sentinel, got %v", err)
	}
}
