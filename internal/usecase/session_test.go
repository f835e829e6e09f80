package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dreznev/authcore/internal/core/domain"
)

var sessionSecret = []byte("0123456789abcdef0123456789abcdef")

func newSessionFixture(t *testing.T) (*SessionService, *time.Time) {
	t.Helper()

	service, err := NewSessionService(sessionSecret, "authcore-test", time.Hour)
	if err != nil {
		t.Fatalf("init session service: %v", err)
	}

	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return now })

	return service, &now
}

func TestSessionRoundTrip(t *testing.T) {
	service, _ := newSessionFixture(t)

	subject := domain.SessionSubject{ID: 42, Name: "Ada", Email: "ada@example.com", Login: "ada@example.com"}
	token, err := service.Establish(context.Background(), subject)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	session, err := service.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	user, ok := session.User()
	if !ok {
		t.Fatal("expected an authenticated session")
	}
	if user.ID != 42 || user.Email != "ada@example.com" || user.Name != "Ada" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestSessionExpires(t *testing.T) {
	service, now := newSessionFixture(t)

	token, err := service.Establish(context.Background(), domain.SessionSubject{ID: 42, Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	*now = now.Add(2 * time.Hour)

	session, err := service.Parse(token)
	if !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected ErrExpiredSessionToken, got %v", err)
	}
	if _, ok := session.User(); ok {
		t.Fatal("expired token must yield an anonymous session")
	}
}

func TestSessionRejectsTamperedToken(t *testing.T) {
	service, _ := newSessionFixture(t)

	token, err := service.Establish(context.Background(), domain.SessionSubject{ID: 42, Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	if _, err := service.Parse(tampered); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestSessionRejectsEmptyToken(t *testing.T) {
	service, _ := newSessionFixture(t)

	if _, err := service.Parse(""); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestSessionRejectsWrongIssuer(t *testing.T) {
	issuerA, err := NewSessionService(sessionSecret, "service-a", time.Hour)
	if err != nil {
		t.Fatalf("init session service: %v", err)
	}
	issuerB, err := NewSessionService(sessionSecret, "service-b", time.Hour)
	if err != nil {
		t.Fatalf("init session service: %v", err)
	}

	token, err := issuerA.Establish(context.Background(), domain.SessionSubject{ID: 42, Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	if _, err := issuerB.Parse(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken, got %v", err)
	}
}

func TestSessionSecretTooShort(t *testing.T) {
	if _, err := NewSessionService([]byte("short"), "authcore-test", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}
