package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/store"
	"github.com/dropDatabas3/tenantdb/internal/tenantctx"
)

type tenantConn struct{ tenant tenantsql.TenantID }

func (c *tenantConn) Driver() string                 { return "routerfake" }
func (c *tenantConn) Ping(ctx context.Context) error { return nil }
func (c *tenantConn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return 0, nil
}
func (c *tenantConn) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	return nil, errors.New("not supported")
}
func (c *tenantConn) Close() error { return nil }

type fakeDriver struct{}

func (fakeDriver) Name() string { return "routerfake" }
func (fakeDriver) Connect(ctx context.Context, cfg store.Config) (store.Conn, error) {
	return &tenantConn{}, nil
}

func init() { store.RegisterDriver(fakeDriver{}) }

func newRegistry(t *testing.T, ids ...tenantsql.TenantID) *tenantsql.Registry {
	t.Helper()
	reg := tenantsql.NewRegistry(tenantsql.Options{
		Open: func(ctx context.Context, id tenantsql.TenantID, src tenantsql.Source) (store.Conn, error) {
			return &tenantConn{tenant: id}, nil
		},
	})
	for _, id := range ids {
		_, err := reg.Register(context.Background(), id, tenantsql.Source{
			Driver:         "routerfake",
			URL:            "fake://" + id.String(),
			MaxPoolSize:    2,
			AcquireTimeout: time.Second,
		})
		require.NoError(t, err)
	}
	return reg
}

func owner(c *tenantsql.Conn) tenantsql.TenantID { return c.Raw().(*tenantConn).tenant }

func TestAcquireFallsBackToDefaultTenant(t *testing.T) {
	r := New(newRegistry(t, tenantsql.DefaultTenantID, "t1"))

	c, err := r.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, tenantsql.DefaultTenantID, owner(c))
	require.NoError(t, r.Release(c))

	ctx, b := tenantctx.Begin(context.Background())
	c, err = r.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, tenantsql.DefaultTenantID, owner(c))
	require.NoError(t, r.Release(c))

	b.Set("t1")
	c, err = r.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, tenantsql.TenantID("t1"), owner(c))
	require.NoError(t, r.Release(c))
}

func TestWithDefaultTenantOption(t *testing.T) {
	r := New(newRegistry(t, "main"), WithDefaultTenant("main"))
	require.Equal(t, tenantsql.TenantID("main"), r.Resolve(context.Background()))
	require.Equal(t, tenantsql.DefaultTenantID, New(nil, WithDefaultTenant("")).Resolve(context.Background()))
}

func TestAcquireUnknownTenant(t *testing.T) {
	r := New(newRegistry(t, tenantsql.DefaultTenantID))
	_, err := r.Acquire(tenantctx.WithTenant(context.Background(), "ghost"))
	require.ErrorIs(t, err, tenantsql.ErrProvisioning)
}

func TestDoubleReleaseThroughRouter(t *testing.T) {
	r := New(newRegistry(t, "t1"))
	c, err := r.AcquireFor(context.Background(), "t1")
	require.NoError(t, err)
	require.NoError(t, r.Release(c))
	require.ErrorIs(t, r.Release(c), tenantsql.ErrRelease)
	require.ErrorIs(t, r.Release(nil), tenantsql.ErrRelease)
}

func TestConcurrentTenantsGetTheirOwnConnections(t *testing.T) {
	r := New(newRegistry(t, "t1", "t2"))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		want := tenantsql.TenantID(fmt.Sprintf("t%d", i%2+1))
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tenantctx.Run(context.Background(), want, func(ctx context.Context) error {
				for j := 0; j < 20; j++ {
					c, err := r.Acquire(ctx)
					if err != nil {
						return err
					}
					got := owner(c)
					if err := r.Release(c); err != nil {
						return err
					}
					if got != want {
						return fmt.Errorf("got connection of %s, want %s", got, want)
					}
				}
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	stats := r.Registry().Stats()
	require.Equal(t, 0, stats["t1"].Acquired)
	require.Equal(t, 0, stats["t2"].Acquired)
	require.LessOrEqual(t, stats["t1"].Total, 2)
}

func TestWithConnReleasesOnErrorAndPanic(t *testing.T) {
	r := New(newRegistry(t, "t1"))
	ctx := tenantctx.WithTenant(context.Background(), "t1")

	err := r.WithConn(ctx, func(ctx context.Context, c *tenantsql.Conn) error {
		require.Equal(t, tenantsql.TenantID("t1"), c.Tenant())
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	require.Equal(t, 0, r.Registry().Stats()["t1"].Acquired)

	require.Panics(t, func() {
		_ = r.WithConn(ctx, func(ctx context.Context, c *tenantsql.Conn) error { panic("x") })
	})
	require.Equal(t, 0, r.Registry().Stats()["t1"].Acquired)

	// release dentro de fn: la devolución final reporta el doble release
	err = r.WithConn(ctx, func(ctx context.Context, c *tenantsql.Conn) error { return c.Release() })
	require.ErrorIs(t, err, tenantsql.ErrRelease)
}
