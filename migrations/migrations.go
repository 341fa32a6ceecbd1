// Package migrations embeds the goose SQL migrations so the admin CLI can
// run them without shipping files alongside the binary.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
