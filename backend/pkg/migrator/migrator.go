package migrator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"

	"room-bridge/backend/pkg/dialect"
	"room-bridge/backend/pkg/utils"
)

// migrationsDir is the directory, relative to the migrations FS root, holding the dbmate files.
const migrationsDir = "migrations"

// Migrator applies pending schema migrations.
type Migrator interface {
	Migrate() error
}

type dbmateMigrator struct {
	db      *dbmate.DB
	dialect dialect.Dialect
	l       *slog.Logger
}

// New creates a migrator for the given dialect. fsys must contain a "migrations" directory with
// dbmate-formatted SQL files.
//
//nolint:ireturn // Returns Migrator interface
func New(l *slog.Logger, d dialect.Dialect, connStr string, fsys fs.FS) (Migrator, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if connStr == "" {
		return nil, errors.New("connection string is required")
	}

	if fsys == nil {
		return nil, errors.New("migrations FS is required")
	}

	if _, err := fs.ReadDir(fsys, migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var (
		u   *url.URL
		err error
	)

	switch d {
	case dialect.SQLite:
		u, err = sqliteURL(connStr)
	case dialect.PostgreSQL:
		u, err = postgresURL(connStr)
	}

	if err != nil {
		return nil, err
	}

	db := dbmate.New(u)
	db.Strict = true
	db.FS = fsys
	db.MigrationsDir = []string{migrationsDir}
	db.AutoDumpSchema = false

	l = l.With(slog.String("component", "db-migrator"), slog.String("dialect", d.String()))
	db.Log = utils.NewSlogWriter(l)

	return &dbmateMigrator{db: db, dialect: d, l: l}, nil
}

// Migrate runs pending migrations, creating the database first when it does not exist.
func (m *dbmateMigrator) Migrate() error {
	m.l.Info("Migrating database")

	if err := m.db.CreateAndMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
