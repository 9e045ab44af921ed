//go:build cgo
// +build cgo

package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"room-bridge/backend/internal/migrations"
	"room-bridge/backend/pkg/dialect"
	"room-bridge/backend/pkg/migrator"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "bridge.sqlite")

	fsys, err := migrations.GetFS(dialect.SQLite)
	if err != nil {
		t.Fatalf("migrations.GetFS() error = %v", err)
	}

	m, err := migrator.New(l, dialect.SQLite, path, fsys)
	if err != nil {
		t.Fatalf("migrator.New() error = %v", err)
	}

	if err := m.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	s, err := Open(context.Background(), l, dialect.SQLite, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	testStoreContract(t, newSQLiteStore)
}

func TestSQLiteStorePing(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := Open(context.Background(), l, "mysql", "x"); err == nil {
		t.Error("Open() expected error for unsupported dialect")
	}
}
