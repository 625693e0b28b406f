// Package migrations embeds goose SQL migration files.
package migrations

import "embed"

// FS holds the migration files applied on startup.
//
//go:embed *.sql
var FS embed.FS
