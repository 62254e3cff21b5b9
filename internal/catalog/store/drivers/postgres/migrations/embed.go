// Package migrations embeds the PostgreSQL catalog schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
