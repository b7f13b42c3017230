// Package database opens the SQLite file that backs the sqlite settings
// store and applies its embedded schema migrations.
//
// The connection runs in WAL mode with a busy timeout and a single pooled
// connection. The file is created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package, which registers
// them through MigrationsFS at init. Files are named
// YYYYMMDD_HHMMSS_description.up.sql with an optional matching .down.sql.
package database
