package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/store"
)

type nopConn struct{}

func (nopConn) Driver() string                 { return "metricsfake" }
func (nopConn) Ping(ctx context.Context) error { return nil }
func (nopConn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return 0, nil
}
func (nopConn) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	return nil, errors.New("not supported")
}
func (nopConn) Close() error { return nil }

type nopDriver struct{}

func (nopDriver) Name() string { return "metricsfake" }
func (nopDriver) Connect(ctx context.Context, cfg store.Config) (store.Conn, error) {
	return nopConn{}, nil
}

func init() { store.RegisterDriver(nopDriver{}) }

func TestPoolMetrics(t *testing.T) {
	m := New(false)
	reg := tenantsql.NewRegistry(tenantsql.Options{Hooks: m.Hooks()})
	require.NoError(t, m.WatchRegistry(reg))
	ctx := context.Background()

	_, err := reg.Register(ctx, "t1", tenantsql.Source{
		Driver: "metricsfake", URL: "x://t1", MaxPoolSize: 1, AcquireTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.poolsCreated))

	p, err := reg.GetOrCreatePool(ctx, "t1")
	require.NoError(t, err)
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, tenantsql.ErrPoolExhausted)
	require.NoError(t, c.Release())
	require.ErrorIs(t, c.Release(), tenantsql.ErrRelease)

	require.Equal(t, 1.0, testutil.ToFloat64(m.exhausted.WithLabelValues("t1")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.doubleRelease.WithLabelValues("t1")))

	m.OnDiscover("ok")
	m.OnDiscover("partial")
	m.OnDiscover("ok")
	require.Equal(t, 2.0, testutil.ToFloat64(m.discoveryRuns.WithLabelValues("ok")))

	expected := `
# HELP tenant_pool_count Cantidad de pools de tenants activos
# TYPE tenant_pool_count gauge
tenant_pool_count 1
# HELP tenant_pool_idle Conexiones inactivas por tenant
# TYPE tenant_pool_idle gauge
tenant_pool_idle{tenant="t1"} 1
# HELP tenant_pool_max Máximo de conexiones configurado por tenant
# TYPE tenant_pool_max gauge
tenant_pool_max{tenant="t1"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"tenant_pool_count", "tenant_pool_idle", "tenant_pool_max"))

	require.NoError(t, reg.Deregister(ctx, "t1"))
	require.Equal(t, 1.0, testutil.ToFloat64(m.poolsClosed))
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New(true)
	m.ObserveHTTP("GET", "/healthz", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), `http_requests_total{method="GET",path="/healthz",status="200"} 1`)
	require.Contains(t, string(body), "go_goroutines")
}
