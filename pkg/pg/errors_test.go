package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/telebill/pkg/logger"
	"github.com/dmitrymomot/telebill/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	wrap := func(err error) error { return fmt.Errorf("query: %w", err) }

	assert.True(t, pg.IsNotFoundError(wrap(pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))

	assert.True(t, pg.IsDuplicateKeyError(wrap(&pgconn.PgError{Code: "23505"})))
	assert.False(t, pg.IsDuplicateKeyError(errors.New("23505")))
	assert.False(t, pg.IsDuplicateKeyError(nil))

	assert.True(t, pg.IsSerializationError(wrap(&pgconn.PgError{Code: "40001"})))
	assert.True(t, pg.IsSerializationError(wrap(&pgconn.PgError{Code: "40P01"})))
	assert.False(t, pg.IsSerializationError(wrap(&pgconn.PgError{Code: "23505"})))
}

func TestConnect_EmptyConnectionString(t *testing.T) {
	t.Parallel()
	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	t.Parallel()
	_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrInvalidConfig)
}

func TestMigrate_RequiresFilesystem(t *testing.T) {
	t.Parallel()
	err := pg.Migrate(context.Background(), nil, nil, pg.Config{}, logger.Noop())
	assert.ErrorIs(t, err, pg.ErrMigrationsNotProvided)
}
