package acumatica

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the SQL migration tree for the token, webhook
// delivery and rate-limit tables, with SQLite variants under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}
