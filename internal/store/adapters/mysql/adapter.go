// Package mysql implementa el driver MySQL sobre github.com/go-sql-driver/mysql.
//
// URL aceptadas:
//   - DSN nativo: "tcp(host:3306)/db?parseTime=true"
//   - URL: "mysql://host:3306/db?parseTime=true" (también con prefijo "jdbc:")
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/dropDatabas3/tenantdb/internal/store"
)

func init() {
	store.RegisterDriver(adapter{}, "mariadb")
}

type adapter struct{}

func (adapter) Name() string { return "mysql" }

func (adapter) Connect(ctx context.Context, cfg store.Config) (store.Conn, error) {
	mcfg, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Username != "" {
		mcfg.User = cfg.Username
	}
	if cfg.Password != "" {
		mcfg.Passwd = cfg.Password
	}
	if cfg.ConnectTimeout > 0 {
		mcfg.Timeout = cfg.ConnectTimeout
	}

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	conn, err := store.OpenSQLConn(ctx, "mysql", sql.OpenDB(connector))
	if err != nil {
		return nil, fmt.Errorf("mysql: connect: %w", err)
	}
	return conn, nil
}

// ParseURL convierte la URL configurada del tenant en un *mysql.Config.
func ParseURL(raw string) (*mysql.Config, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "jdbc:")
	if raw == "" {
		return nil, errors.New("mysql: empty url")
	}
	if !strings.HasPrefix(raw, "mysql://") {
		cfg, err := mysql.ParseDSN(raw)
		if err != nil {
			return nil, fmt.Errorf("mysql: parse dsn: %w", err)
		}
		return cfg, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse url: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Hostname() + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	if q := u.Query(); len(q) > 0 {
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		for k := range q {
			switch k {
			case "parseTime":
				cfg.ParseTime = q.Get(k) == "true"
			default:
				cfg.Params[k] = q.Get(k)
			}
		}
	}
	return cfg, nil
}
