package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeYAML(t, `
default_tenant:
  driver: pg
  url: postgres://localhost/sys
`)
	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "dev", c.App.Env)
	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "sql", c.Catalog.Kind)
	require.Equal(t, "sys_tenant", c.Catalog.Table)
	require.Equal(t, "manual", c.Discovery.Mode)
	require.Equal(t, "memory", c.NegativeCache.Kind)
	require.Equal(t, 30*time.Second, c.NegativeCache.TTL)
	require.Equal(t, 10*time.Second, c.Pool.ConnectTimeout)
	require.Equal(t, 30*time.Second, c.Pool.ProvisionTimeout)
	require.Equal(t, time.Minute, c.Pool.HealthInterval)
	require.Equal(t, time.Minute, c.Admin.DiscoverWindow)
	require.False(t, c.UsesRedis())
}

func TestEnvOverrides(t *testing.T) {
	p := writeYAML(t, `
app:
  env: dev
default_tenant:
  driver: pg
  url: postgres://localhost/sys
  max_pool_size: 5
discovery:
  mode: manual
`)
	t.Setenv("TENANTDB_DEFAULT_DB_URL", "postgres://db/prod")
	t.Setenv("TENANTDB_DEFAULT_DB_MAX_POOL_SIZE", "20")
	t.Setenv("TENANTDB_DISCOVERY_MODE", "POLL")
	t.Setenv("TENANTDB_DISCOVERY_INTERVAL", "90s")
	t.Setenv("TENANTDB_DISCOVERY_ON_STARTUP", "true")

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "postgres://db/prod", c.DefaultTenant.URL)
	require.Equal(t, 20, c.DefaultTenant.MaxPoolSize)
	require.Equal(t, "poll", c.Discovery.Mode)
	require.Equal(t, 90*time.Second, c.Discovery.Interval)
	require.True(t, c.Discovery.OnStartup)
}

func TestLoadWithoutFileUsesEnv(t *testing.T) {
	t.Setenv("TENANTDB_DEFAULT_DB_DRIVER", "sqlite")
	t.Setenv("TENANTDB_DEFAULT_DB_URL", ":memory:")
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sqlite", c.DefaultTenant.Driver)
}

func TestMalformedEnvIsAnError(t *testing.T) {
	t.Setenv("TENANTDB_DEFAULT_DB_DRIVER", "pg")
	t.Setenv("TENANTDB_DEFAULT_DB_URL", "postgres://x/y")
	t.Setenv("TENANTDB_NEGATIVE_CACHE_TTL", "forever")
	_, err := Load("")
	require.ErrorContains(t, err, "TENANTDB_NEGATIVE_CACHE_TTL")
}

func TestValidate(t *testing.T) {
	_, err := Load(writeYAML(t, "app:\n  env: dev\n"))
	require.ErrorContains(t, err, "default_tenant.url is required")

	_, err = Load(writeYAML(t, `
default_tenant: {driver: pg, url: "postgres://x/y"}
discovery: {mode: redis}
`))
	require.ErrorContains(t, err, "redis.addr is required")

	_, err = Load(writeYAML(t, `
default_tenant: {driver: pg, url: "postgres://x/y"}
catalog: {kind: etcd}
`))
	require.ErrorContains(t, err, "catalog.kind")

	_, err = Load(writeYAML(t, `
app: {env: prod}
default_tenant: {driver: pg, url: "postgres://x/y"}
admin: {jwt_secret: short}
`))
	require.ErrorContains(t, err, "jwt_secret")

	c, err := Load(writeYAML(t, `
default_tenant: {driver: pg, url: "postgres://x/y"}
discovery: {mode: redis}
redis: {addr: "localhost:6379"}
`))
	require.NoError(t, err)
	require.True(t, c.UsesRedis())
}
