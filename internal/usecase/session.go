package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
)

var (
	// ErrInvalidSessionToken indicates the token is malformed or failed signature validation.
	ErrInvalidSessionToken = errors.New("invalid session token")
	// ErrExpiredSessionToken indicates the token has expired.
	ErrExpiredSessionToken = errors.New("session token expired")
)

const defaultSessionTTL = 7 * 24 * time.Hour

// SessionClaims carries the sanitized subject inside the session token.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionService issues and parses signed session tokens for authenticated
// users. It only ever consumes a SessionSubject: password hashes are stripped
// before a user reaches this point.
type SessionService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(secret []byte, issuer string, ttl time.Duration) (*SessionService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	if now != nil {
		s.now = now
	}
	return s
}

// Establish mints a signed session token for the authenticated subject.
func (s *SessionService) Establish(_ context.Context, subject domain.SessionSubject) (string, error) {
	if subject.ID == 0 {
		return "", fmt.Errorf("subject id is required")
	}

	now := s.now().UTC()
	claims := SessionClaims{
		Email: subject.Email,
		Name:  subject.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subject.ID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates a session token and reconstructs the session context. A
// missing or invalid token yields an anonymous session only when lenient
// callers ignore the error.
func (s *SessionService) Parse(token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.AnonymousSession(), ErrInvalidSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.AnonymousSession(), ErrExpiredSessionToken
		}
		return domain.AnonymousSession(), ErrInvalidSessionToken
	}
	if parsed == nil || !parsed.Valid {
		return domain.AnonymousSession(), ErrInvalidSessionToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return domain.AnonymousSession(), ErrInvalidSessionToken
	}

	return domain.AuthenticatedSession(domain.User{
		ID:    id,
		Name:  claims.Name,
		Email: claims.Email,
		Login: claims.Email,
	}), nil
}

var _ port.SessionIssuer = (*SessionService)(nil)
