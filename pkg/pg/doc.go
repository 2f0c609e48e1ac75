// Package pg opens the PostgreSQL pool used by the subscription store and
// applies its goose migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, cfg, log); err != nil {
//		return err
//	}
//
// IsNotFoundError, IsDuplicateKeyError and IsSerializationError inspect
// wrapped pgx errors so storage code can translate them into domain errors.
package pg
