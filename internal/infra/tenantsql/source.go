package tenantsql

import (
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantdb/internal/store"
	"github.com/dropDatabas3/tenantdb/internal/util"
)

// TenantID identifica a un tenant. Opaco para el core.
type TenantID string

// DefaultTenantID es el id reservado del tenant default (el que aloja el catálogo).
const DefaultTenantID TenantID = "0"

func (id TenantID) String() string { return string(id) }

// Valid reporta si el id no está vacío.
func (id TenantID) Valid() bool { return strings.TrimSpace(string(id)) != "" }

// Defaults de pool por tenant.
const (
	DefaultMaxPoolSize    = 10
	DefaultMaxIdle        = 2
	DefaultAcquireTimeout = 5 * time.Second
	DefaultMaxLifetime    = 30 * time.Minute
)

// Source es la configuración inmutable para abrir conexiones de un tenant.
type Source struct {
	Driver   string `json:"driver" yaml:"driver"`
	URL      string `json:"url" yaml:"url"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"-" yaml:"password,omitempty"`

	MaxPoolSize    int           `json:"maxPoolSize,omitempty" yaml:"max_pool_size,omitempty"`
	MaxIdle        int           `json:"maxIdle,omitempty" yaml:"max_idle,omitempty"`
	AcquireTimeout time.Duration `json:"acquireTimeout,omitempty" yaml:"acquire_timeout,omitempty"`
	MaxLifetime    time.Duration `json:"maxLifetime,omitempty" yaml:"max_lifetime,omitempty"`
}

// WithDefaults completa los límites de pool en cero y canoniza el driver.
func (s Source) WithDefaults() Source {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if c := store.Canonical(s.Driver); c != "" {
		s.Driver = c
	}
	s.URL = strings.TrimSpace(s.URL)
	if s.MaxPoolSize <= 0 {
		s.MaxPoolSize = DefaultMaxPoolSize
	}
	if s.MaxIdle <= 0 {
		s.MaxIdle = DefaultMaxIdle
	}
	if s.MaxIdle > s.MaxPoolSize {
		s.MaxIdle = s.MaxPoolSize
	}
	if s.AcquireTimeout <= 0 {
		s.AcquireTimeout = DefaultAcquireTimeout
	}
	if s.MaxLifetime <= 0 {
		s.MaxLifetime = DefaultMaxLifetime
	}
	return s
}

// Validate verifica que la fuente se pueda usar para abrir conexiones.
func (s Source) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidSource)
	}
	if s.Driver == "" {
		return fmt.Errorf("%w: empty driver", ErrInvalidSource)
	}
	if store.Canonical(s.Driver) == "" {
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidSource, s.Driver)
	}
	if s.MaxPoolSize < 0 || s.MaxIdle < 0 {
		return fmt.Errorf("%w: negative pool limits", ErrInvalidSource)
	}
	return nil
}

// Equal compara dos fuentes después de aplicar defaults.
func (s Source) Equal(o Source) bool {
	return s.WithDefaults() == o.WithDefaults()
}

// Redacted representa la fuente para logs, sin password (ni el campo ni el
// embebido en la URL/DSN).
func (s Source) Redacted() string {
	pw := ""
	if s.Password != "" {
		pw = " password=***"
	}
	return fmt.Sprintf("%s %s user=%s%s max=%d", s.Driver, util.MaskURL(s.URL), s.Username, pw, s.MaxPoolSize)
}
