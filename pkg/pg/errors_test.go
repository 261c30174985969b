package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/vowbill/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("load: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, pg.IsDuplicateKeyError(dup))
	assert.False(t, pg.IsDuplicateKeyError(errors.New("23505")))

	assert.True(t, pg.IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, pg.IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, pg.IsSerializationFailure(dup))
}

func TestConnect_InvalidConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := pg.Connect(ctx, pg.Config{})
	assert.ErrorIs(t, err, pg.ErrEmptyConnectionString)

	_, err = pg.Connect(ctx, pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestMigrate_MissingDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	err := pg.Migrate(ctx, nil, nil, "", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrMigrationPathNotProvided)

	err = pg.Migrate(ctx, nil, fstest.MapFS{}, "migrations", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrMigrationsDirNotFound)
}
