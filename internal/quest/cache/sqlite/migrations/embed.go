package migrations

import "embed"

// FS contains embedded SQLite migrations for the quest goal cache.
//
//go:embed *.sql
var FS embed.FS
