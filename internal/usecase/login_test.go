package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/infra/security"
	"github.com/dreznev/authcore/internal/repository"
)

type loginUserRepository struct {
	user       *domain.User
	findCalled bool
}

func (r *loginUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.findCalled = true
	if r.user == nil || r.user.Email != email {
		return nil, repository.ErrNotFound
	}
	copy := *r.user
	return &copy, nil
}

func (r *loginUserRepository) Insert(context.Context, domain.User) (domain.User, error) {
	return domain.User{}, errors.New("unexpected call: Insert")
}

func (r *loginUserRepository) UpsertOnIDConflict(context.Context, domain.User) (domain.User, error) {
	return domain.User{}, errors.New("unexpected call: UpsertOnIDConflict")
}

type memoryLedger struct {
	attempts []domain.LoginAttempt
}

func (l *memoryLedger) CountFailures(_ context.Context, dimension domain.AttemptDimension, key string, since time.Time) (int, error) {
	count := 0
	for _, attempt := range l.attempts {
		if attempt.Succeeded || !attempt.CreatedAt.After(since) {
			continue
		}
		switch dimension {
		case domain.AttemptDimensionIP:
			if attempt.IP == key {
				count++
			}
		case domain.AttemptDimensionUser:
			if attempt.UserID != nil && strconv.FormatInt(*attempt.UserID, 10) == key {
				count++
			}
		}
	}
	return count, nil
}

func (l *memoryLedger) Record(_ context.Context, attempt domain.LoginAttempt) error {
	l.attempts = append(l.attempts, attempt)
	return nil
}

func (l *memoryLedger) last() domain.LoginAttempt {
	return l.attempts[len(l.attempts)-1]
}

func newLoginFixture(t *testing.T, password string) (*LoginService, *loginUserRepository, *memoryLedger, *time.Time) {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	users := &loginUserRepository{
		user: &domain.User{
			ID:           42,
			Name:         "Ada",
			Email:        "ada@example.com",
			Login:        "ada@example.com",
			PasswordHash: &hash,
		},
	}
	ledger := &memoryLedger{}

	now := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	service := NewLoginService(users, ledger, nil).WithClock(func() time.Time { return now })

	return service, users, ledger, &now
}

func TestAuthenticatePasswordSuccess(t *testing.T) {
	service, _, ledger, _ := newLoginFixture(t, "correct horse")

	subject, err := service.AuthenticatePassword(context.Background(), "203.0.113.9", "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if subject.ID != 42 || subject.Email != "ada@example.com" {
		t.Fatalf("unexpected subject: %+v", subject)
	}

	if len(ledger.attempts) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(ledger.attempts))
	}
	last := ledger.last()
	if !last.Succeeded || last.UserID == nil || *last.UserID != 42 {
		t.Fatalf("unexpected ledger row: %+v", last)
	}
}

func TestAuthenticatePasswordWrongPassword(t *testing.T) {
	service, _, ledger, _ := newLoginFixture(t, "correct horse")

	_, err := service.AuthenticatePassword(context.Background(), "203.0.113.9", "ada@example.com", "battery staple")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	last := ledger.last()
	if last.Succeeded || last.UserID == nil || *last.UserID != 42 {
		t.Fatalf("unexpected ledger row: %+v", last)
	}
}

func TestAuthenticatePasswordUnknownEmail(t *testing.T) {
	service, _, ledger, _ := newLoginFixture(t, "correct horse")

	_, err := service.AuthenticatePassword(context.Background(), "203.0.113.9", "nobody@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	last := ledger.last()
	if last.Succeeded {
		t.Fatal("attempt for unknown email must be recorded as failure")
	}
	if last.UserID != nil {
		t.Fatalf("attempt for unknown email must carry no user id, got %v", *last.UserID)
	}
}

func TestAuthenticatePasswordNoPasswordSet(t *testing.T) {
	service, users, ledger, _ := newLoginFixture(t, "correct horse")
	users.user.PasswordHash = nil

	_, err := service.AuthenticatePassword(context.Background(), "203.0.113.9", "ada@example.com", "anything")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	last := ledger.last()
	if last.Succeeded || last.UserID == nil || *last.UserID != 42 {
		t.Fatalf("unexpected ledger row: %+v", last)
	}
}

func TestAuthenticatePasswordIPLockout(t *testing.T) {
	service, users, ledger, now := newLoginFixture(t, "correct horse")

	ip := "203.0.113.9"
	for i := 0; i < DefaultMaxFailuresPerIP; i++ {
		ledger.attempts = append(ledger.attempts, domain.LoginAttempt{
			IP:        ip,
			Succeeded: false,
			CreatedAt: now.Add(-30 * time.Second),
		})
	}

	users.findCalled = false
	_, err := service.AuthenticatePassword(context.Background(), ip, "ada@example.com", "correct horse")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) || rateErr.Scope != RateLimitScopeIP {
		t.Fatalf("expected ip-scoped rate limit, got %v", err)
	}

	if users.findCalled {
		t.Fatal("ip lockout must reject before resolving the user")
	}

	last := ledger.last()
	if last.Succeeded || last.UserID != nil {
		t.Fatalf("lockout rejection must record an anonymous failure, got %+v", last)
	}
}

func TestAuthenticatePasswordUserLockoutAcrossIPs(t *testing.T) {
	service, _, ledger, now := newLoginFixture(t, "correct horse")

	userID := int64(42)
	for i := 0; i < DefaultMaxFailuresPerUser; i++ {
		ledger.attempts = append(ledger.attempts, domain.LoginAttempt{
			UserID:    &userID,
			IP:        "198.51.100.7",
			Succeeded: false,
			CreatedAt: now.Add(-30 * time.Second),
		})
	}

	// A fresh IP is not enough: the account itself is throttled.
	_, err := service.AuthenticatePassword(context.Background(), "203.0.113.200", "ada@example.com", "correct horse")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) || rateErr.Scope != RateLimitScopeUser {
		t.Fatalf("expected user-scoped rate limit, got %v", err)
	}

	last := ledger.last()
	if last.UserID == nil || *last.UserID != userID {
		t.Fatalf("user lockout rejection must record against the user, got %+v", last)
	}
}

func TestAuthenticatePasswordWindowSlides(t *testing.T) {
	service, _, ledger, now := newLoginFixture(t, "correct horse")

	userID := int64(42)
	for i := 0; i < DefaultMaxFailuresPerUser; i++ {
		ledger.attempts = append(ledger.attempts, domain.LoginAttempt{
			UserID:    &userID,
			IP:        "203.0.113.9",
			Succeeded: false,
			CreatedAt: now.Add(-30 * time.Second),
		})
	}

	if _, err := service.AuthenticatePassword(context.Background(), "203.0.113.9", "ada@example.com", "correct horse"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected lockout inside window, got %v", err)
	}

	// Old failures fall out of the window; nothing is deleted.
	*now = now.Add(DefaultAttemptWindow + time.Second)

	subject, err := service.AuthenticatePassword(context.Background(), "203.0.113.9", "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("expected success after window advanced, got %v", err)
	}
	if subject.ID != 42 {
		t.Fatalf("unexpected subject: %+v", subject)
	}
	if len(ledger.attempts) != DefaultMaxFailuresPerUser+2 {
		t.Fatalf("failures must age out by filtering, not deletion; have %d rows", len(ledger.attempts))
	}
}

func TestAuthenticatePasswordSuccessUnderThreshold(t *testing.T) {
	service, _, ledger, now := newLoginFixture(t, "correct horse")

	userID := int64(42)
	for i := 0; i < DefaultMaxFailuresPerUser-1; i++ {
		ledger.attempts = append(ledger.attempts, domain.LoginAttempt{
			UserID:    &userID,
			IP:        "203.0.113.9",
			Succeeded: false,
			CreatedAt: now.Add(-30 * time.Second),
		})
	}

	if _, err := service.AuthenticatePassword(context.Background(), "203.0.113.9", "ada@example.com", "correct horse"); err != nil {
		t.Fatalf("expected success below threshold, got %v", err)
	}
}
