// Package migrations embeds the goose SQL migrations of the book catalog.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
