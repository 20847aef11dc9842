// Package migrations embeds the schema migration files for chatmap.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
