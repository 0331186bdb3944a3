package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations
var migrationsFS embed.FS

// DevMode switches migration loading from the embedded copy to the on-disk
// migrations directory, so schema changes can be iterated on without
// rebuilding the binary.
var DevMode = os.Getenv("TRACKLOG_DEV_MIGRATIONS") == "1"

// getMigrationsFS returns the migration source: the embedded filesystem in
// normal builds, the working-tree directory in dev mode.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS("internal/db/migrations"), nil
	}
	return fs.Sub(migrationsFS, "migrations")
}
