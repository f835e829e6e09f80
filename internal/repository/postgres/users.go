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

const userColumns = "id, name, email, login, password_hash"

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// FindByEmail retrieves a user by exact email match.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select("id", "name", "email", "login", "password_hash").
		From("users").
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// Insert creates a new user row and returns it with the store-assigned id.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) (domain.User, error) {
	stmt, args, err := r.builder.
		Insert("users").
		Columns("name", "email", "login", "password_hash").
		Values(nullable(user.Name), user.Email, nullable(user.Login), user.PasswordHash).
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build insert user sql: %w", err)
	}

	inserted, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, repository.ErrConflict
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	return *inserted, nil
}

// UpsertOnIDConflict inserts the user, updating only name and email when a row
// with the same id already exists. Without an assigned id it behaves as a
// plain insert. The email uniqueness constraint still applies and surfaces as
// repository.ErrConflict.
func (r *UserRepository) UpsertOnIDConflict(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == 0 {
		return r.Insert(ctx, user)
	}

	stmt, args, err := r.builder.
		Insert("users").
		Columns("id", "name", "email", "login", "password_hash").
		Values(user.ID, nullable(user.Name), user.Email, nullable(user.Login), user.PasswordHash).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email").
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build upsert user sql: %w", err)
	}

	upserted, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, repository.ErrConflict
		}
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}

	return *upserted, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		name         sql.NullString
		login        sql.NullString
		passwordHash sql.NullString
	)

	if err := row.Scan(&user.ID, &name, &user.Email, &login, &passwordHash); err != nil {
		return nil, err
	}

	if name.Valid {
		user.Name = name.String
	}
	if login.Valid {
		user.Login = login.String
	} else {
		user.Login = user.Email
	}
	if passwordHash.Valid {
		val := passwordHash.String
		user.PasswordHash = &val
	}

	return &user, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ port.UserRepository = (*UserRepository)(nil)
