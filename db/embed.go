// Package db embeds the SQL migration files shipped with the binary.
package db

import "embed"

// MigrationsFS holds every migration under db/migrations.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
