// Package pg bootstraps the Postgres layer on pgx/v5: a retrying pool
// constructor, goose migrations from an embedded filesystem, a readiness
// probe and SQLSTATE classification helpers.
//
// Typical startup:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, db.Migrations, db.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//
// Configuration is read from PG_* environment variables, see Config.
package pg
