package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/logger"
	"github.com/dreznev/authcore/internal/infra/telemetry"
	"github.com/dreznev/authcore/internal/repository"
)

// PasskeyService drives the authentication half of the public-key credential
// protocol. Signature verification itself is delegated to the ceremony
// library; this layer decides which credentials are offerable, resolves a
// presented credential to its owner, and shapes the session subject.
type PasskeyService struct {
	users       port.UserRepository
	credentials port.CredentialRepository
	events      port.EventPublisher
	metrics     *telemetry.Metrics
	log         *zap.Logger
}

// NewPasskeyService constructs a PasskeyService.
func NewPasskeyService(users port.UserRepository, credentials port.CredentialRepository, log *zap.Logger) *PasskeyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasskeyService{
		users:       users,
		credentials: credentials,
		log:         log,
	}
}

// WithEventPublisher attaches a security event publisher.
func (s *PasskeyService) WithEventPublisher(events port.EventPublisher) *PasskeyService {
	s.events = events
	return s
}

// WithMetrics attaches outcome counters.
func (s *PasskeyService) WithMetrics(m *telemetry.Metrics) *PasskeyService {
	s.metrics = m
	return s
}

// AllowedCredentials resolves the identity hint to a user and returns that
// user's linked credentials. An unknown identity yields an empty slice, not an
// error, so this path cannot be used to enumerate accounts.
func (s *PasskeyService) AllowedCredentials(ctx context.Context, identityHint string) ([]domain.Credential, error) {
	user, err := s.users.FindByEmail(ctx, identityHint)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, storeFailure("find user by email", err)
	}

	creds, err := s.credentials.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, storeFailure("list credentials", err)
	}
	return creds, nil
}

// ResolveCredential looks up a credential by its global unique id, joined with
// its owner. Resolution failure is surfaced directly as ErrCredentialNotFound:
// the challenge protocol already bound the id cryptographically before this
// lookup runs, so no enumeration risk is added.
func (s *PasskeyService) ResolveCredential(ctx context.Context, credentialID string) (*domain.OwnedCredential, error) {
	owned, err := s.credentials.FindByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, storeFailure("find credential", err)
	}
	return owned, nil
}

// OnAuthenticated finalizes a verified ceremony: it raises the stored
// signature counter and returns the sanitized subject for session
// establishment. It does not re-verify the signature.
//
// A counter lower than the stored value is a possible cloned-authenticator
// signal; it is logged and the stored counter left untouched rather than
// hard-failing, since many authenticators legitimately report zero.
func (s *PasskeyService) OnAuthenticated(ctx context.Context, owned domain.OwnedCredential, verifiedCounter uint32) (domain.SessionSubject, error) {
	cred := owned.Credential

	switch {
	case verifiedCounter > cred.Counter:
		if err := s.credentials.BumpCounter(ctx, cred.ID, verifiedCounter); err != nil {
			return domain.SessionSubject{}, storeFailure("bump signature counter", err)
		}
	case verifiedCounter != 0 && verifiedCounter < cred.Counter:
		s.log.Warn("signature counter regression",
			zap.String("email", logger.MaskEmail(owned.Owner.Email)),
			zap.Uint32("stored", cred.Counter),
			zap.Uint32("presented", verifiedCounter),
		)
	}

	s.metrics.ObserveLogin("passkey_success")
	publishEvent(ctx, s.log, s.events, domain.SecurityEvent{
		Type:   domain.EventLoginSucceeded,
		UserID: &owned.Owner.ID,
		Email:  owned.Owner.Email,
		Metadata: map[string]string{
			"method": "passkey",
		},
	})

	return owned.Owner.Subject(), nil
}
