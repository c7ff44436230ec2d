package migrations

import "embed"

// FS contains embedded SQLite migrations for realm storage.
//
//go:embed *.sql
var FS embed.FS
