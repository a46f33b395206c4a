// Package database provides SQLite connectivity for Railrunner.
//
// It opens the database file (optionally in WAL mode) and applies the
// schema migrations shipped in the migrations package. Migrations are
// additive, named YYYYMMDD_HHMMSS_description.up.sql with an optional
// matching .down.sql, and recorded in the schema_migrations table.
//
// The connection pool is limited to a single connection. All repository
// writes happen from the engine loop, so there is never more than one
// writer.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        "./data/railrunner.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, migrations.Dir); err != nil {
//	    return err
//	}
package database
