// Package pg provides PostgreSQL connection management for the control
// plane: pool setup with retry, health probes, goose-driven migrations
// from an embedded filesystem, and error classification helpers used by
// pkg/pgstore.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations(), cfg, log); err != nil {
//		return err
//	}
package pg
