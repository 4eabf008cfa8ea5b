// Package fs implementa el catálogo de tenants sobre YAML en disco:
//
//	<root>/tenants/<id>/tenant.yaml
//
// Pensado para desarrollo y despliegues chicos sin base de catálogo.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/tenantdb/internal/controlplane"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/security/secretbox"
	"github.com/dropDatabas3/tenantdb/internal/util/atomicwrite"
)

var idRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// TenantFile es el contenido de tenant.yaml.
type TenantFile struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name,omitempty"`
	Disabled  bool      `yaml:"disabled,omitempty"`
	DB        DBConfig  `yaml:"db"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// DBConfig conexión del tenant. Password puede venir cifrado ("enc:...").
type DBConfig struct {
	Driver         string        `yaml:"driver"`
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	MaxPoolSize    int           `yaml:"max_pool_size,omitempty"`
	MaxIdle        int           `yaml:"max_idle,omitempty"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout,omitempty"`
}

// Catalog lee y escribe tenants en YAML.
type Catalog struct {
	root string
	// Encrypt cifra passwords en Put (default secretbox.Encrypt si hay clave).
	Encrypt func(string) (string, error)
	// Reveal descifra passwords en lectura (default secretbox.Reveal).
	Reveal func(string) (string, error)

	mu sync.Mutex // serializa escrituras
}

// New crea el catálogo con raíz root.
func New(root string) *Catalog {
	return &Catalog{root: filepath.Clean(root), Reveal: secretbox.Reveal}
}

// Root retorna el directorio raíz.
func (c *Catalog) Root() string { return c.root }

func (c *Catalog) tenantsDir() string { return filepath.Join(c.root, "tenants") }
func (c *Catalog) tenantFile(id string) string {
	return filepath.Join(c.tenantsDir(), id, "tenant.yaml")
}

func (c *Catalog) List(ctx context.Context) ([]controlplane.Row, error) {
	entries, err := os.ReadDir(c.tenantsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []controlplane.Row
	for _, e := range entries {
		if !e.IsDir() || !idRe.MatchString(e.Name()) {
			continue
		}
		tf, err := c.read(e.Name())
		if err != nil {
			if os.IsNotExist(err) {
				continue // soft-deleted
			}
			out = append(out, controlplane.Row{ID: tenantsql.TenantID(e.Name()), Err: err})
			continue
		}
		if tf.Disabled {
			continue
		}
		out = append(out, c.toRow(e.Name(), tf))
	}
	controlplane.SortRows(out)
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, id tenantsql.TenantID) (controlplane.Row, error) {
	if !idRe.MatchString(id.String()) {
		return controlplane.Row{}, fmt.Errorf("%w: %s", controlplane.ErrTenantNotFound, id)
	}
	tf, err := c.read(id.String())
	if err != nil {
		if os.IsNotExist(err) {
			return controlplane.Row{}, fmt.Errorf("%w: %s", controlplane.ErrTenantNotFound, id)
		}
		return controlplane.Row{}, err
	}
	if tf.Disabled {
		return controlplane.Row{}, fmt.Errorf("%w: %s (disabled)", controlplane.ErrTenantNotFound, id)
	}
	return c.toRow(id.String(), tf), nil
}

// Put crea o reemplaza tenant.yaml. El password se guarda cifrado si hay Encrypt.
func (c *Catalog) Put(ctx context.Context, row controlplane.Row) error {
	id := row.ID.String()
	if !idRe.MatchString(id) {
		return fmt.Errorf("%w: invalid tenant id %q", controlplane.ErrBadInput, id)
	}
	if strings.TrimSpace(row.Source.URL) == "" {
		return fmt.Errorf("%w: db url required", controlplane.ErrBadInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	tf := &TenantFile{ID: id, CreatedAt: now}
	if prev, err := c.read(id); err == nil {
		tf.CreatedAt = prev.CreatedAt
	}
	pw := row.Source.Password
	if pw != "" && !secretbox.IsEncrypted(pw) && c.Encrypt != nil {
		enc, err := c.Encrypt(pw)
		if err != nil {
			return fmt.Errorf("encrypt password: %w", err)
		}
		pw = enc
	}
	tf.Name = row.Name
	tf.UpdatedAt = now
	tf.DB = DBConfig{
		Driver:         row.Source.Driver,
		URL:            row.Source.URL,
		Username:       row.Source.Username,
		Password:       pw,
		MaxPoolSize:    row.Source.MaxPoolSize,
		MaxIdle:        row.Source.MaxIdle,
		AcquireTimeout: row.Source.AcquireTimeout,
	}
	return atomicwrite.WriteYAML(c.tenantFile(id), tf, 0o600)
}

// Delete hace soft-delete: tenant.yaml -> tenant.deleted.<unix>.yaml.
func (c *Catalog) Delete(ctx context.Context, id tenantsql.TenantID) error {
	if !idRe.MatchString(id.String()) {
		return fmt.Errorf("%w: %s", controlplane.ErrTenantNotFound, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tf := c.tenantFile(id.String())
	if _, err := os.Stat(tf); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", controlplane.ErrTenantNotFound, id)
	}
	dst := filepath.Join(filepath.Dir(tf), fmt.Sprintf("tenant.deleted.%d.yaml", time.Now().UnixNano()))
	return os.Rename(tf, dst)
}

func (c *Catalog) read(id string) (*TenantFile, error) {
	b, err := os.ReadFile(c.tenantFile(id))
	if err != nil {
		return nil, err
	}
	var tf TenantFile
	if err := yaml.Unmarshal(b, &tf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", controlplane.ErrBadInput, id, err)
	}
	return &tf, nil
}

func (c *Catalog) toRow(id string, tf *TenantFile) controlplane.Row {
	row := controlplane.Row{
		ID:   tenantsql.TenantID(id),
		Name: tf.Name,
		Source: tenantsql.Source{
			Driver:         tf.DB.Driver,
			URL:            tf.DB.URL,
			Username:       tf.DB.Username,
			MaxPoolSize:    tf.DB.MaxPoolSize,
			MaxIdle:        tf.DB.MaxIdle,
			AcquireTimeout: tf.DB.AcquireTimeout,
		},
	}
	if tf.ID != "" && tf.ID != id {
		row.Err = fmt.Errorf("%w: id %q does not match directory %q", controlplane.ErrBadInput, tf.ID, id)
		return row
	}
	reveal := c.Reveal
	if reveal == nil {
		reveal = secretbox.Reveal
	}
	pw, err := reveal(tf.DB.Password)
	if err != nil {
		row.Err = fmt.Errorf("decrypt password: %w", err)
		return row
	}
	row.Source.Password = pw
	return row
}

var (
	_ controlplane.Catalog = (*Catalog)(nil)
	_ controlplane.Writer  = (*Catalog)(nil)
)
