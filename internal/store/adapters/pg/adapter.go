// Package pg implementa el driver PostgreSQL sobre pgx/v5.
// Cada Connect abre un *pgx.Conn; el pooling lo hace tenantsql.
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/tenantdb/internal/store"
)

func init() {
	store.RegisterDriver(adapter{}, "postgres", "postgresql")
}

type adapter struct{}

func (adapter) Name() string { return "pg" }

func (adapter) Connect(ctx context.Context, cfg store.Config) (store.Conn, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("pg: empty url")
	}
	pcfg, err := pgx.ParseConfig(normalizeURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("pg: parse url: %w", err)
	}
	// credenciales explícitas pisan las del URL
	if cfg.Username != "" {
		pcfg.User = cfg.Username
	}
	if cfg.Password != "" {
		pcfg.Password = cfg.Password
	}
	if cfg.ConnectTimeout > 0 {
		pcfg.ConnectTimeout = cfg.ConnectTimeout
	}

	c, err := pgx.ConnectConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	return &Conn{c: c}, nil
}

// normalizeURL acepta URLs estilo JDBC ("jdbc:postgresql://host/db").
func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	return strings.TrimPrefix(u, "jdbc:")
}

// Conn envuelve un *pgx.Conn.
type Conn struct{ c *pgx.Conn }

func (c *Conn) Driver() string { return "pg" }

func (c *Conn) Ping(ctx context.Context) error { return c.c.Ping(ctx) }

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := c.c.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	return c.c.Query(ctx, sql, args...)
}

func (c *Conn) Close() error { return c.c.Close(context.Background()) }

// PGX expone la conexión nativa para usos avanzados (COPY, LISTEN).
func (c *Conn) PGX() *pgx.Conn { return c.c }
