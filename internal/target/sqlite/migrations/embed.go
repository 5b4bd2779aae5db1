package migrations

import "embed"

// FS contains embedded SQLite migrations for the host placement model.
//
//go:embed *.sql
var FS embed.FS
