// Package migrations embeds the catalog store schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
