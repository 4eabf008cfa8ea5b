// Package store provee el registry de drivers de base de datos que abren las
// conexiones físicas de cada tenant.
//
// Cada adapter (pg, mysql, sqlite) se registra en su init(); cmd/tenantdb los
// importa con blank import.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownDriver indica que no hay un driver registrado con ese nombre.
var ErrUnknownDriver = errors.New("store: unknown driver")

// Driver abre conexiones físicas individuales (sin pool propio).
type Driver interface {
	// Name retorna el nombre canónico del driver (ej: "pg", "mysql", "sqlite").
	Name() string

	// Connect abre UNA conexión física.
	Connect(ctx context.Context, cfg Config) (Conn, error)
}

// Conn es una conexión física abierta contra la base de un tenant.
type Conn interface {
	// Driver retorna el nombre canónico del driver que abrió la conexión.
	Driver() string
	Ping(ctx context.Context) error
	// Exec ejecuta un statement y devuelve las filas afectadas.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Rows es el subconjunto común entre pgx.Rows y *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Config parámetros para abrir una conexión.
type Config struct {
	Driver   string
	URL      string
	Username string
	Password string

	// ConnectTimeout acota el dial inicial (0 = sin límite propio, usa ctx).
	ConnectTimeout time.Duration
}

var (
	registryMu sync.RWMutex
	drivers    = make(map[string]Driver)
	aliases    = make(map[string]string)
)

// RegisterDriver registra un driver y sus alias. Llamar en init() del adapter.
func RegisterDriver(d Driver, alias ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := normalize(d.Name())
	if owner, exists := aliases[name]; exists {
		panic(fmt.Sprintf("store: driver %q already registered (by %q)", name, owner))
	}
	for _, a := range alias {
		if owner, taken := aliases[normalize(a)]; taken {
			panic(fmt.Sprintf("store: alias %q already used by %q", a, owner))
		}
	}
	drivers[name] = d
	aliases[name] = name
	for _, a := range alias {
		aliases[normalize(a)] = name
	}
}

// Canonical resuelve un nombre o alias al nombre canónico ("" si no existe).
func Canonical(name string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return aliases[normalize(name)]
}

// GetDriver obtiene un driver por nombre o alias.
func GetDriver(name string) (Driver, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := drivers[aliases[normalize(name)]]
	return d, ok
}

// ListDrivers retorna los nombres canónicos registrados, ordenados.
func ListDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open abre una conexión usando el driver indicado en cfg.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	d, ok := GetDriver(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	return d.Connect(ctx, cfg)
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
