// Package database provides SQLite connectivity for the alarm event journal.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations from an embedded filesystem
//   - Connection lifecycle and health checks
//
// The journal is an audit trail. The controller never reads alarm state back
// from it; boot state always comes from the forced clear.
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive: new columns must be NULLABLE or have DEFAULT
// values, and each .up.sql should ship with a .down.sql.
package database
