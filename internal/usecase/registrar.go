package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/logger"
	"github.com/dreznev/authcore/internal/infra/security"
	"github.com/dreznev/authcore/internal/infra/telemetry"
	"github.com/dreznev/authcore/internal/repository"
)

// Registrar validates and persists new accounts and credentials. It resolves
// the conflict rules for linking a new public-key credential to an existing
// or brand-new account, and owns the password registration path.
type Registrar struct {
	users         port.UserRepository
	registrations port.RegistrationStore
	events        port.EventPublisher
	metrics       *telemetry.Metrics
	log           *zap.Logger
}

// NewRegistrar constructs a Registrar.
func NewRegistrar(users port.UserRepository, registrations port.RegistrationStore, log *zap.Logger) *Registrar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registrar{
		users:         users,
		registrations: registrations,
		log:           log,
	}
}

// WithEventPublisher attaches a security event publisher.
func (r *Registrar) WithEventPublisher(events port.EventPublisher) *Registrar {
	r.events = events
	return r
}

// WithMetrics attaches outcome counters.
func (r *Registrar) WithMetrics(m *telemetry.Metrics) *Registrar {
	r.metrics = m
	return r
}

// ProposedIdentity is the identity a client offers when starting a credential
// registration ceremony.
type ProposedIdentity struct {
	Email string
	Name  string
}

// ValidatedIdentity is the outcome of ValidateIdentity. UserID is set when the
// identity resolved to an existing account, so the persistence step updates
// instead of duplicating.
type ValidatedIdentity struct {
	UserID *int64
	Email  string
	Name   string
}

// CredentialMaterial carries the new credential produced by a completed
// cryptographic exchange, not yet bound to a user id.
type CredentialMaterial struct {
	ID         string
	PublicKey  []byte
	Counter    uint32
	BackedUp   bool
	Transports []string
}

// ValidateIdentity checks a registration request against session and account
// state before any challenge is issued.
//
// An active session may only register credentials for its own email. Without a
// session, only a brand-new identity may self-register: adding a credential
// to an existing account requires logging in as that account first.
func (r *Registrar) ValidateIdentity(ctx context.Context, session domain.Session, proposed ProposedIdentity) (ValidatedIdentity, error) {
	var zero ValidatedIdentity

	email := strings.TrimSpace(proposed.Email)
	if email == "" {
		return zero, ErrInvalidCredential
	}

	sessionUser, authenticated := session.User()
	if authenticated && sessionUser.Email != email {
		return zero, ErrIdentityMismatch
	}

	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return zero, storeFailure("find user by email", err)
	}

	if existing != nil {
		if !authenticated {
			return zero, ErrLoginRequired
		}
		// The validated identity becomes the existing account so persistence
		// updates rather than inserting a duplicate.
		name := existing.Name
		if name == "" {
			name = proposed.Name
		}
		return ValidatedIdentity{UserID: &existing.ID, Email: existing.Email, Name: name}, nil
	}

	return ValidatedIdentity{Email: email, Name: proposed.Name}, nil
}

// OnCredentialReady persists the outcome of a completed ceremony: the user
// upsert and credential insert commit atomically, and the sanitized subject is
// returned for session establishment. A concurrent duplicate registration for
// the same new email loses on the store's email uniqueness constraint and
// surfaces as ErrAlreadyExists.
func (r *Registrar) OnCredentialReady(ctx context.Context, identity ValidatedIdentity, material CredentialMaterial) (domain.SessionSubject, error) {
	var zero domain.SessionSubject

	if material.ID == "" || len(material.PublicKey) == 0 {
		return zero, ErrCredentialNotFound
	}

	user := domain.User{
		Name:  identity.Name,
		Email: identity.Email,
		Login: identity.Email,
	}
	if identity.UserID != nil {
		user.ID = *identity.UserID
	}

	credential := domain.Credential{
		ID:         material.ID,
		PublicKey:  material.PublicKey,
		Counter:    material.Counter,
		BackedUp:   material.BackedUp,
		Transports: material.Transports,
	}

	committed, err := r.registrations.PersistRegistration(ctx, user, credential)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return zero, ErrAlreadyExists
		}
		return zero, storeFailure("persist registration", err)
	}

	r.metrics.ObserveRegistration("passkey")
	r.log.Info("credential registered",
		zap.String("email", logger.MaskEmail(committed.Email)),
		zap.Int64("user_id", committed.ID),
	)
	publishEvent(ctx, r.log, r.events, domain.SecurityEvent{
		Type:   domain.EventCredentialRegistered,
		UserID: &committed.ID,
		Email:  committed.Email,
	})

	return committed.Subject(), nil
}

// RegisterPassword creates a brand-new password-capable account. An existing
// account for the email is rejected up front; the unique index backstops the
// race between two concurrent registrations for the same address.
func (r *Registrar) RegisterPassword(ctx context.Context, email, name, password string) (domain.SessionSubject, error) {
	var zero domain.SessionSubject

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return zero, ErrInvalidCredential
	}

	existing, err := r.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return zero, storeFailure("find user by email", err)
	}
	if existing != nil {
		return zero, ErrAlreadyExists
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return zero, storeFailure("hash password", err)
	}

	created, err := r.users.Insert(ctx, domain.User{
		Name:         name,
		Email:        email,
		Login:        email,
		PasswordHash: &hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return zero, ErrAlreadyExists
		}
		return zero, storeFailure("insert user", err)
	}

	r.metrics.ObserveRegistration("password")
	r.log.Info("user registered",
		zap.String("email", logger.MaskEmail(created.Email)),
		zap.Int64("user_id", created.ID),
	)
	publishEvent(ctx, r.log, r.events, domain.SecurityEvent{
		Type:   domain.EventUserRegistered,
		UserID: &created.ID,
		Email:  created.Email,
	})

	return created.Subject(), nil
}
