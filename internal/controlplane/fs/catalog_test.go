package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantdb/internal/controlplane"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/security/secretbox"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 3)
	}
	box, err := secretbox.New(key)
	require.NoError(t, err)
	c := New(t.TempDir())
	c.Encrypt = box.Encrypt
	c.Reveal = box.Reveal
	return c
}

func TestFSCatalogCRUD(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	rows, err := c.List(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)

	err = c.Put(ctx, controlplane.Row{ID: "t2", Name: "beta", Source: tenantsql.Source{
		Driver: "pg", URL: "postgres://h/beta", Username: "app", Password: "pw", MaxPoolSize: 4,
		AcquireTimeout: 2 * time.Second,
	}})
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, controlplane.Row{ID: "t1", Source: tenantsql.Source{Driver: "sqlite", URL: ":memory:"}}))

	// el password queda cifrado en disco
	b, err := os.ReadFile(filepath.Join(c.Root(), "tenants", "t2", "tenant.yaml"))
	require.NoError(t, err)
	require.False(t, strings.Contains(string(b), "password: pw"))
	require.Contains(t, string(b), "enc:")

	rows, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, tenantsql.TenantID("t1"), rows[0].ID)
	require.Equal(t, tenantsql.TenantID("t2"), rows[1].ID)
	require.Equal(t, "pw", rows[1].Source.Password)
	require.Equal(t, 4, rows[1].Source.MaxPoolSize)
	require.Equal(t, 2*time.Second, rows[1].Source.AcquireTimeout)

	row, err := c.Get(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, "beta", row.Name)

	require.NoError(t, c.Delete(ctx, "t2"))
	_, err = c.Get(ctx, "t2")
	require.ErrorIs(t, err, controlplane.ErrTenantNotFound)
	require.ErrorIs(t, err, tenantsql.ErrNotFound)
	require.ErrorIs(t, c.Delete(ctx, "t2"), controlplane.ErrTenantNotFound)

	rows, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestFSCatalogRejectsBadIDs(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	err := c.Put(ctx, controlplane.Row{ID: "../evil", Source: tenantsql.Source{URL: "x"}})
	require.ErrorIs(t, err, controlplane.ErrBadInput)
	err = c.Put(ctx, controlplane.Row{ID: "ok"})
	require.ErrorIs(t, err, controlplane.ErrBadInput)

	_, err = c.Get(ctx, "../../etc")
	require.ErrorIs(t, err, controlplane.ErrTenantNotFound)
}

func TestFSCatalogDisabledAndBrokenFiles(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	write := func(id, body string) {
		p := filepath.Join(c.Root(), "tenants", id, "tenant.yaml")
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	write("off", "id: off\ndisabled: true\ndb:\n  driver: pg\n  url: postgres://h/off\n")
	write("broken", "id: [\n")
	write("mismatch", "id: other\ndb:\n  driver: pg\n  url: postgres://h/m\n")
	write("badpw", "id: badpw\ndb:\n  driver: pg\n  url: postgres://h/b\n  password: enc:AAAA\n")

	rows, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	byID := map[tenantsql.TenantID]controlplane.Row{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	require.NotContains(t, byID, tenantsql.TenantID("off"))
	require.ErrorIs(t, byID["broken"].Err, controlplane.ErrBadInput)
	require.ErrorIs(t, byID["mismatch"].Err, controlplane.ErrBadInput)
	require.Error(t, byID["badpw"].Err)

	_, err = c.Get(ctx, "off")
	require.ErrorIs(t, err, controlplane.ErrTenantNotFound)
}
