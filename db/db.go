// Package db embeds the SQL migrations and seeds shipped with the binary.
package db

import "embed"

//go:embed migrations/*.sql seeds/*.sql
var FS embed.FS

const (
	MigrationsDir = "migrations"
	SeedsDir      = "seeds"
)
