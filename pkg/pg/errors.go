package pg

import (
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString   = errors.New("empty postgres connection string, use PG_CONN_URL env var")
	ErrInvalidConfig           = errors.New("invalid postgres config")
	ErrNotReady                = errors.New("postgres did not become ready")
	ErrUnhealthy               = errors.New("postgres is not available")
	ErrMigrationsNotProvided   = errors.New("migrations filesystem not provided")
	ErrFailedToApplyMigrations = errors.New("failed to apply migrations")
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsNotFoundError reports a query that returned no rows.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsSerializationError reports a serialization failure or deadlock. The
// transaction was rolled back and can be retried from the start.
func IsSerializationError(err error) bool {
	return hasCode(err, codeSerializationFailure, codeDeadlockDetected)
}

func hasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && slices.Contains(codes, pgErr.Code)
}
