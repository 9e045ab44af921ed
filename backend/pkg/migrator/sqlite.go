package migrator

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/amacneil/dbmate/v2/pkg/driver/sqlite"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteURL builds the dbmate URL for a file path. In-memory databases are rejected since every
// connection would see a fresh, empty schema.
func sqliteURL(connStr string) (*url.URL, error) {
	if strings.Contains(connStr, ":memory:") || strings.Contains(connStr, "mode=memory") {
		return nil, errors.New("in-memory databases are not supported")
	}

	path := strings.TrimPrefix(connStr, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	u, err := url.Parse("sqlite:" + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	return u, nil
}
