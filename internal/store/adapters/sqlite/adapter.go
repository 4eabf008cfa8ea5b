// Package sqlite implementa el driver SQLite (modernc.org/sqlite, sin cgo).
// Útil para desarrollo y tests; URL = path del archivo o ":memory:".
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dropDatabas3/tenantdb/internal/store"
)

func init() {
	store.RegisterDriver(adapter{}, "sqlite3")
}

type adapter struct{}

func (adapter) Name() string { return "sqlite" }

func (adapter) Connect(ctx context.Context, cfg store.Config) (store.Conn, error) {
	path := strings.TrimPrefix(strings.TrimSpace(cfg.URL), "sqlite://")
	if path == "" {
		return nil, errors.New("sqlite: empty url")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	conn, err := store.OpenSQLConn(ctx, "sqlite", db)
	if err != nil {
		return nil, fmt.Errorf("sqlite: connect: %w", err)
	}
	return conn, nil
}
