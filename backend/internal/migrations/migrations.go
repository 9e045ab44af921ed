package migrations

import (
	"embed"
	"fmt"
	"io/fs"

	"room-bridge/backend/pkg/dialect"
)

// migrationsFS embeds the SQL migration files of every supported dialect.
// Structure:
//
//	.
//	|-- sqlite
//	|   |-- migrations
//	|       |-- *.sql
//	|-- postgres
//	|   |-- migrations
//	|       |-- *.sql
//
//go:embed sqlite/migrations/*.sql postgres/migrations/*.sql
var migrationsFS embed.FS

// GetFS returns the migrations of one dialect, rooted so that "migrations" is a top-level directory.
//
//nolint:ireturn // fs.Sub returns fs.FS
func GetFS(d dialect.Dialect) (fs.FS, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	sub, err := fs.Sub(migrationsFS, d.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", d, err)
	}

	return sub, nil
}
