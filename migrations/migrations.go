// Package migrations embeds the SQL schema applied by cmd/migrate and by the
// server when postgres.auto_migrate is enabled.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
