package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/logger"
	"github.com/dreznev/authcore/internal/infra/security"
	"github.com/dreznev/authcore/internal/infra/telemetry"
	"github.com/dreznev/authcore/internal/repository"
)

// Brute-force protection defaults. The window slides: failures age out by
// falling outside the filter, never by deletion.
const (
	DefaultAttemptWindow      = 2 * time.Minute
	DefaultMaxFailuresPerIP   = 10
	DefaultMaxFailuresPerUser = 5
)

// LockoutPolicy bundles the sliding-window thresholds.
type LockoutPolicy struct {
	Window             time.Duration
	MaxFailuresPerIP   int
	MaxFailuresPerUser int
}

// DefaultLockoutPolicy returns the stock thresholds.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Window:             DefaultAttemptWindow,
		MaxFailuresPerIP:   DefaultMaxFailuresPerIP,
		MaxFailuresPerUser: DefaultMaxFailuresPerUser,
	}
}

func (p LockoutPolicy) normalized() LockoutPolicy {
	if p.Window <= 0 {
		p.Window = DefaultAttemptWindow
	}
	if p.MaxFailuresPerIP <= 0 {
		p.MaxFailuresPerIP = DefaultMaxFailuresPerIP
	}
	if p.MaxFailuresPerUser <= 0 {
		p.MaxFailuresPerUser = DefaultMaxFailuresPerUser
	}
	return p
}

// LoginService coordinates the password authentication flow: lockout checks
// against the attempt ledger, user resolution, password verification, and the
// audit trail. It holds no mutable state between requests.
type LoginService struct {
	users   port.UserRepository
	ledger  port.AttemptLedger
	policy  LockoutPolicy
	events  port.EventPublisher
	metrics *telemetry.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// NewLoginService constructs a LoginService with the default lockout policy.
func NewLoginService(users port.UserRepository, ledger port.AttemptLedger, log *zap.Logger) *LoginService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginService{
		users:  users,
		ledger: ledger,
		policy: DefaultLockoutPolicy(),
		log:    log,
		now:    time.Now,
	}
}

// WithPolicy overrides the lockout thresholds. Zero fields fall back to defaults.
func (s *LoginService) WithPolicy(policy LockoutPolicy) *LoginService {
	s.policy = policy.normalized()
	return s
}

// WithEventPublisher attaches a security event publisher.
func (s *LoginService) WithEventPublisher(events port.EventPublisher) *LoginService {
	s.events = events
	return s
}

// WithMetrics attaches outcome counters.
func (s *LoginService) WithMetrics(m *telemetry.Metrics) *LoginService {
	s.metrics = m
	return s
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *LoginService) WithClock(now func() time.Time) *LoginService {
	if now != nil {
		s.now = now
	}
	return s
}

// AuthenticatePassword runs the full password-login decision for one request.
//
// Ordering is deliberate: the IP lockout is checked before the user is even
// resolved, so probing many emails from one IP is throttled without leaking
// which emails exist; the user lockout is checked after resolution but before
// the expensive password comparison. Every terminal path appends exactly one
// ledger row before returning, including pure rate-limit rejections, so
// repeated abuse is self-reinforcing.
func (s *LoginService) AuthenticatePassword(ctx context.Context, ip, email, password string) (domain.SessionSubject, error) {
	var zero domain.SessionSubject

	now := s.now().UTC()
	windowStart := now.Add(-s.policy.Window)

	ipFailures, err := s.ledger.CountFailures(ctx, domain.AttemptDimensionIP, ip, windowStart)
	if err != nil {
		return zero, storeFailure("count ip failures", err)
	}
	if ipFailures >= s.policy.MaxFailuresPerIP {
		if err := s.recordFailure(ctx, nil, ip); err != nil {
			return zero, err
		}
		s.observeLockout(ctx, RateLimitScopeIP, nil, email, ip)
		return zero, rateLimited(RateLimitScopeIP)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return zero, storeFailure("find user by email", err)
	}

	// Unknown email and password-less account take the same path as a wrong
	// password so the three cases are indistinguishable to the caller.
	if user == nil {
		if err := s.recordFailure(ctx, nil, ip); err != nil {
			return zero, err
		}
		s.observeFailure(ctx, nil, email, ip, "unknown_email")
		return zero, ErrInvalidCredential
	}

	userFailures, err := s.ledger.CountFailures(ctx, domain.AttemptDimensionUser, strconv.FormatInt(user.ID, 10), windowStart)
	if err != nil {
		return zero, storeFailure("count user failures", err)
	}
	if userFailures >= s.policy.MaxFailuresPerUser {
		if err := s.recordFailure(ctx, &user.ID, ip); err != nil {
			return zero, err
		}
		s.observeLockout(ctx, RateLimitScopeUser, &user.ID, email, ip)
		return zero, rateLimited(RateLimitScopeUser)
	}

	if !user.PasswordCapable() {
		if err := s.recordFailure(ctx, &user.ID, ip); err != nil {
			return zero, err
		}
		s.observeFailure(ctx, &user.ID, email, ip, "no_password")
		return zero, ErrInvalidCredential
	}

	ok, err := security.VerifyPassword(password, *user.PasswordHash)
	if err != nil {
		return zero, storeFailure("verify password", err)
	}
	if !ok {
		if err := s.recordFailure(ctx, &user.ID, ip); err != nil {
			return zero, err
		}
		s.observeFailure(ctx, &user.ID, email, ip, "wrong_password")
		return zero, ErrInvalidCredential
	}

	if err := s.record(ctx, &user.ID, ip, true); err != nil {
		return zero, err
	}

	s.metrics.ObserveLogin("success")
	s.publish(ctx, domain.SecurityEvent{
		Type:   domain.EventLoginSucceeded,
		UserID: &user.ID,
		Email:  email,
		IP:     ip,
	})

	return user.Subject(), nil
}

// record appends one ledger row. The write is detached from the caller's
// cancellation: an abandoned request must not strip the audit trail.
func (s *LoginService) record(ctx context.Context, userID *int64, ip string, succeeded bool) error {
	attempt := domain.LoginAttempt{
		UserID:    userID,
		IP:        ip,
		Succeeded: succeeded,
		CreatedAt: s.now().UTC(),
	}
	if err := s.ledger.Record(context.WithoutCancel(ctx), attempt); err != nil {
		return storeFailure("record login attempt", err)
	}
	return nil
}

func (s *LoginService) recordFailure(ctx context.Context, userID *int64, ip string) error {
	return s.record(ctx, userID, ip, false)
}

func (s *LoginService) observeFailure(ctx context.Context, userID *int64, email, ip, reason string) {
	s.metrics.ObserveLogin("failure")
	s.log.Info("password login rejected",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("ip", logger.MaskIP(ip)),
		zap.String("reason", reason),
	)
	s.publish(ctx, domain.SecurityEvent{
		Type:     domain.EventLoginFailed,
		UserID:   userID,
		Email:    email,
		IP:       ip,
		Metadata: map[string]string{"reason": reason},
	})
}

func (s *LoginService) observeLockout(ctx context.Context, scope RateLimitScope, userID *int64, email, ip string) {
	s.metrics.ObserveLockout(string(scope))
	s.log.Warn("lockout threshold reached",
		zap.String("scope", string(scope)),
		zap.String("ip", logger.MaskIP(ip)),
	)
	s.publish(ctx, domain.SecurityEvent{
		Type:     domain.EventLockoutTriggered,
		UserID:   userID,
		Email:    email,
		IP:       ip,
		Metadata: map[string]string{"scope": string(scope)},
	})
}

func (s *LoginService) publish(ctx context.Context, event domain.SecurityEvent) {
	if event.At.IsZero() {
		event.At = s.now().UTC()
	}
	publishEvent(ctx, s.log, s.events, event)
}
