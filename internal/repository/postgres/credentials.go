package postgres

import (
	"context"
	"database/sql"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/repository"
)

// CredentialRepository implements port.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCredentialRepository wires a PostgreSQL-backed credential repository.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepository {
	return &CredentialRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *CredentialRepository) WithTx(tx pgx.Tx) *CredentialRepository {
	if tx == nil {
		return r
	}
	return &CredentialRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// FindByID retrieves a credential by its globally unique id, joined with the
// owning user.
func (r *CredentialRepository) FindByID(ctx context.Context, credentialID string) (*domain.OwnedCredential, error) {
	stmt, args, err := r.builder.
		Select(
			"c.id", "c.user_id", "c.public_key", "c.counter", "c.backed_up", "c.transports",
			"u.id", "u.name", "u.email", "u.login", "u.password_hash",
		).
		From("credentials c").
		Join("users u ON u.id = c.user_id").
		Where(squirrel.Eq{"c.id": credentialID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select credential sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		owned        domain.OwnedCredential
		name         sql.NullString
		login        sql.NullString
		passwordHash sql.NullString
	)

	if err := row.Scan(
		&owned.Credential.ID,
		&owned.Credential.UserID,
		&owned.Credential.PublicKey,
		&owned.Credential.Counter,
		&owned.Credential.BackedUp,
		&owned.Credential.Transports,
		&owned.Owner.ID,
		&name,
		&owned.Owner.Email,
		&login,
		&passwordHash,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	if name.Valid {
		owned.Owner.Name = name.String
	}
	if login.Valid {
		owned.Owner.Login = login.String
	} else {
		owned.Owner.Login = owned.Owner.Email
	}
	if passwordHash.Valid {
		val := passwordHash.String
		owned.Owner.PasswordHash = &val
	}

	return &owned, nil
}

// ListByUser returns all credentials linked to the user.
func (r *CredentialRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Credential, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "public_key", "counter", "backed_up", "transports").
		From("credentials").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list credentials sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var credentials []domain.Credential
	for rows.Next() {
		var c domain.Credential
		if err := rows.Scan(&c.ID, &c.UserID, &c.PublicKey, &c.Counter, &c.BackedUp, &c.Transports); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		credentials = append(credentials, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return credentials, nil
}

// Insert creates a new credential row bound to its user.
func (r *CredentialRepository) Insert(ctx context.Context, credential domain.Credential) error {
	stmt, args, err := r.builder.
		Insert("credentials").
		Columns("id", "user_id", "public_key", "counter", "backed_up", "transports").
		Values(
			credential.ID,
			credential.UserID,
			credential.PublicKey,
			credential.Counter,
			credential.BackedUp,
			credential.Transports,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert credential sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

// BumpCounter raises the stored signature counter. The guard in the WHERE
// clause keeps the counter monotonic even under concurrent updates.
func (r *CredentialRepository) BumpCounter(ctx context.Context, credentialID string, counter uint32) error {
	stmt, args, err := r.builder.
		Update("credentials").
		Set("counter", counter).
		Where(squirrel.Eq{"id": credentialID}).
		Where(squirrel.Lt{"counter": counter}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update counter sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update counter: %w", err)
	}

	return nil
}

var _ port.CredentialRepository = (*CredentialRepository)(nil)
