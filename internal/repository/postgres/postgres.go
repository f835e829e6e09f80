package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/repository"
)

// pgExecutor abstracts over the pool and a transaction so repositories can run
// inside either.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles the PostgreSQL-backed stores sharing one pool.
type Repositories struct {
	pool        *pgxpool.Pool
	Users       *UserRepository
	Credentials *CredentialRepository
	Attempts    *AttemptLedger
}

// NewRepositories wires all repositories over the supplied pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		pool:        pool,
		Users:       NewUserRepository(pool),
		Credentials: NewCredentialRepository(pool),
		Attempts:    NewAttemptLedger(pool),
	}
}

// PersistRegistration commits the user upsert and the credential insert in a
// single transaction. A crash between the two steps therefore cannot leave a
// credential pointing at a user id that never committed.
func (r *Repositories) PersistRegistration(ctx context.Context, user domain.User, credential domain.Credential) (domain.User, error) {
	var committed domain.User

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		upserted, err := r.Users.WithTx(tx).UpsertOnIDConflict(ctx, user)
		if err != nil {
			return err
		}

		credential.UserID = upserted.ID
		if err := r.Credentials.WithTx(tx).Insert(ctx, credential); err != nil {
			return err
		}

		committed = upserted
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, repository.ErrConflict
		}
		return domain.User{}, fmt.Errorf("persist registration: %w", err)
	}

	return committed, nil
}

// isUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ port.RegistrationStore = (*Repositories)(nil)
