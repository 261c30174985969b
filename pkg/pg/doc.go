// Package pg bootstraps PostgreSQL access on top of pgx/v5 and goose/v3.
//
//   - Config is populated from environment variables via github.com/caarlos0/env.
//   - Connect opens a *pgxpool.Pool, retrying until the database answers.
//   - Migrate applies goose migrations from an fs.FS (usually embedded).
//   - Healthcheck returns a probe for readiness endpoints.
//
// Typical start-up:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log); err != nil {
//		return err
//	}
//
// IsNotFoundError, IsDuplicateKeyError and IsSerializationFailure classify
// errors returned by pgx.
package pg
