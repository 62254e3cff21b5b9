// Package migrations embeds the auth store schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
