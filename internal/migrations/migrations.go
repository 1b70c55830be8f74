// Package migrations embeds the goose migration scripts for both
// supported database engines.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS
