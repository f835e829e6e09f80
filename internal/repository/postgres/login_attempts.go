package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
)

// AttemptLedger implements port.AttemptLedger using PostgreSQL. Rows are only
// ever inserted; the window query filters on timestamp instead of pruning.
type AttemptLedger struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAttemptLedger wires a PostgreSQL-backed attempt ledger.
func NewAttemptLedger(pool *pgxpool.Pool) *AttemptLedger {
	return &AttemptLedger{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CountFailures counts failed attempts for the dimension key with a timestamp
// strictly after since.
func (r *AttemptLedger) CountFailures(ctx context.Context, dimension domain.AttemptDimension, key string, since time.Time) (int, error) {
	query := r.builder.
		Select("COUNT(*)").
		From("login_attempts").
		Where(squirrel.Eq{"succeeded": false}).
		Where(squirrel.Gt{"created_at": since})

	switch dimension {
	case domain.AttemptDimensionIP:
		query = query.Where(squirrel.Eq{"ip": key})
	case domain.AttemptDimensionUser:
		userID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse user key: %w", err)
		}
		query = query.Where(squirrel.Eq{"user_id": userID})
	default:
		return 0, fmt.Errorf("unknown attempt dimension %q", dimension)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count failures sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}

	return count, nil
}

// Record appends one immutable attempt row.
func (r *AttemptLedger) Record(ctx context.Context, attempt domain.LoginAttempt) error {
	createdAt := attempt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	stmt, args, err := r.builder.
		Insert("login_attempts").
		Columns("user_id", "ip", "succeeded", "created_at").
		Values(attempt.UserID, attempt.IP, attempt.Succeeded, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	return nil
}

var _ port.AttemptLedger = (*AttemptLedger)(nil)
