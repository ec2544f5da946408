// Package migrations embeds the journal schema into the binary.
//
// Apply with:
//
//	db.Migrate(ctx, migrations.FS, ".")
package migrations

import "embed"

// FS holds every *.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
