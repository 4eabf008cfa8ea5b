// Package sql implementa el catálogo de tenants sobre una tabla en la base del
// tenant default. Las consultas pasan por el router, así que el catálogo usa
// el mismo pool acotado que cualquier otra unidad de trabajo.
package sql

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dropDatabas3/tenantdb/internal/controlplane"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/security/secretbox"
	"github.com/dropDatabas3/tenantdb/internal/store"
	mysqlmig "github.com/dropDatabas3/tenantdb/migrations/mysql"
	pgmig "github.com/dropDatabas3/tenantdb/migrations/postgres"
	sqlitemig "github.com/dropDatabas3/tenantdb/migrations/sqlite"
)

// DefaultTable nombre de la tabla del catálogo.
const DefaultTable = "sys_tenant"

var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Conns es el subconjunto del router que usa el catálogo.
type Conns interface {
	AcquireFor(ctx context.Context, id tenantsql.TenantID) (*tenantsql.Conn, error)
	Release(c *tenantsql.Conn) error
}

// Options configura el catálogo.
type Options struct {
	// Table nombre de la tabla (default sys_tenant).
	Table string
	// Tenant dueño de la tabla (default "0").
	Tenant tenantsql.TenantID
	// Reveal descifra passwords "enc:" (default secretbox.Reveal).
	Reveal func(string) (string, error)
}

// Catalog lee tenants activos (status = 1) de la tabla del catálogo.
type Catalog struct {
	conns  Conns
	table  string
	tenant tenantsql.TenantID
	reveal func(string) (string, error)
}

// New crea el catálogo. Falla si el nombre de tabla no es un identificador simple.
func New(conns Conns, opts Options) (*Catalog, error) {
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = DefaultTable
	}
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid catalog table %q", controlplane.ErrBadInput, table)
	}
	c := &Catalog{conns: conns, table: table, tenant: opts.Tenant, reveal: opts.Reveal}
	if !c.tenant.Valid() {
		c.tenant = tenantsql.DefaultTenantID
	}
	if c.reveal == nil {
		c.reveal = secretbox.Reveal
	}
	return c, nil
}

// Table retorna el nombre de tabla efectivo.
func (c *Catalog) Table() string { return c.table }

const columns = "tenant_id, tenant_name, db_driver, db_url, db_username, db_password, max_pool_size"

func (c *Catalog) List(ctx context.Context) ([]controlplane.Row, error) {
	var out []controlplane.Row
	err := c.with(ctx, func(conn *tenantsql.Conn) error {
		q := "SELECT " + columns + " FROM " + c.table + " WHERE status = 1 ORDER BY tenant_id"
		rows, err := conn.Query(ctx, q)
		if err != nil {
			return fmt.Errorf("catalog list: %w", err)
		}
		out, err = c.scan(rows, conn.Driver())
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Debug("catalog listed", logger.Component("catalog.sql"), logger.Count(len(out)))
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, id tenantsql.TenantID) (controlplane.Row, error) {
	var out []controlplane.Row
	err := c.with(ctx, func(conn *tenantsql.Conn) error {
		q := "SELECT " + columns + " FROM " + c.table +
			" WHERE status = 1 AND tenant_id = " + placeholder(conn.Driver(), 1)
		rows, err := conn.Query(ctx, q, id.String())
		if err != nil {
			return fmt.Errorf("catalog get %s: %w", id, err)
		}
		out, err = c.scan(rows, conn.Driver())
		return err
	})
	if err != nil {
		return controlplane.Row{}, err
	}
	if len(out) == 0 {
		return controlplane.Row{}, fmt.Errorf("%w: %s", controlplane.ErrTenantNotFound, id)
	}
	return out[0], nil
}

// EnsureSchema crea la tabla del catálogo si no existe (DDL embebido por dialecto).
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	return c.with(ctx, func(conn *tenantsql.Conn) error {
		stmts, err := schema(conn.Driver())
		if err != nil {
			return err
		}
		for _, s := range stmts {
			s = strings.ReplaceAll(s, DefaultTable, c.table)
			if _, err := conn.Exec(ctx, s); err != nil {
				return fmt.Errorf("catalog schema: %w", err)
			}
		}
		logger.From(ctx).Info("catalog schema ready",
			logger.Component("catalog.sql"),
			logger.String("table", c.table),
			logger.Driver(conn.Driver()))
		return nil
	})
}

func (c *Catalog) with(ctx context.Context, fn func(conn *tenantsql.Conn) error) error {
	conn, err := c.conns.AcquireFor(ctx, c.tenant)
	if err != nil {
		return fmt.Errorf("catalog: acquire %s: %w", c.tenant, err)
	}
	defer func() { _ = c.conns.Release(conn) }()
	return fn(conn)
}

func (c *Catalog) scan(rows store.Rows, connDriver string) ([]controlplane.Row, error) {
	defer rows.Close()
	var out []controlplane.Row
	for rows.Next() {
		var id, name, driver, url, user, pass, maxPool any
		if err := rows.Scan(&id, &name, &driver, &url, &user, &pass, &maxPool); err != nil {
			return nil, fmt.Errorf("catalog scan: %w", err)
		}
		row := controlplane.Row{
			ID:   tenantsql.TenantID(asString(id)),
			Name: asString(name),
			Source: tenantsql.Source{
				Driver:   asString(driver),
				URL:      asString(url),
				Username: asString(user),
			},
		}
		if row.Source.Driver == "" {
			// sin driver explícito: mismo motor que la base del catálogo
			row.Source.Driver = connDriver
		}
		if n, err := asInt(maxPool); err != nil {
			row.Err = fmt.Errorf("%w: max_pool_size: %v", controlplane.ErrBadInput, err)
		} else {
			row.Source.MaxPoolSize = n
		}
		if pw, err := c.reveal(asString(pass)); err != nil {
			row.Err = fmt.Errorf("decrypt password: %w", err)
		} else {
			row.Source.Password = pw
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog rows: %w", err)
	}
	return out, nil
}

func placeholder(driver string, n int) string {
	if driver == "pg" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func schema(driver string) ([]string, error) {
	var fsys fs.FS
	var dir string
	switch driver {
	case "pg":
		fsys, dir = pgmig.CatalogFS, pgmig.CatalogDir
	case "mysql":
		fsys, dir = mysqlmig.CatalogFS, mysqlmig.CatalogDir
	case "sqlite":
		fsys, dir = sqlitemig.CatalogFS, sqlitemig.CatalogDir
	default:
		return nil, fmt.Errorf("catalog schema: unsupported driver %q", driver)
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(fsys, dir+"/"+n)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case int16:
		return int(t), nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string, []byte:
		s := asString(t)
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
