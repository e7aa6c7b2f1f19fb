package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the schema migrations for the principals store
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
