// Package config carga la configuración de tenantdb: YAML + variables de
// entorno (TENANTDB_*), con defaults y validación.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "TENANTDB_"

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// DefaultTenant es la base del tenant "0" (aloja el catálogo).
	DefaultTenant DataSource `yaml:"default_tenant"`

	// Pool defaults para tenants cuyo catálogo no define límites.
	Pool struct {
		ConnectTimeout   time.Duration `yaml:"connect_timeout"`
		// ProvisionTimeout acota la provisión lazy de un tenant nuevo.
		ProvisionTimeout time.Duration `yaml:"provision_timeout"`
		// HealthInterval cada cuánto se revisan las conexiones idle (<0 = nunca).
		HealthInterval   time.Duration `yaml:"health_interval"`
	} `yaml:"pool"`

	Catalog struct {
		// sql | fs | none
		Kind   string `yaml:"kind"`
		Table  string `yaml:"table"`
		FSRoot string `yaml:"fs_root"`
	} `yaml:"catalog"`

	Discovery struct {
		// manual | poll | redis
		Mode      string        `yaml:"mode"`
		Interval  time.Duration `yaml:"interval"`
		OnStartup bool          `yaml:"on_startup"`
		Channel   string        `yaml:"channel"`
	} `yaml:"discovery"`

	NegativeCache struct {
		// memory | redis
		Kind string        `yaml:"kind"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"negative_cache"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Admin struct {
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
		// DiscoverLimit corridas a demanda por DiscoverWindow (0 = sin límite).
		DiscoverLimit  int           `yaml:"discover_limit"`
		DiscoverWindow time.Duration `yaml:"discover_window"`
	} `yaml:"admin"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Runtime bool `yaml:"runtime"`
	} `yaml:"metrics"`
}

// DataSource conexión + límites de pool de un tenant.
type DataSource struct {
	Driver         string        `yaml:"driver"`
	URL            string        `yaml:"url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	MaxIdle        int           `yaml:"max_idle"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
}

// Load lee path (si no está vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Pool.ConnectTimeout == 0 {
		c.Pool.ConnectTimeout = 10 * time.Second
	}
	if c.Pool.ProvisionTimeout == 0 {
		c.Pool.ProvisionTimeout = 30 * time.Second
	}
	if c.Pool.HealthInterval == 0 {
		c.Pool.HealthInterval = time.Minute
	}
	if c.Catalog.Kind == "" {
		c.Catalog.Kind = "sql"
	}
	if c.Catalog.Table == "" {
		c.Catalog.Table = "sys_tenant"
	}
	if c.Catalog.FSRoot == "" {
		c.Catalog.FSRoot = "./data/tenantdb"
	}
	if c.Discovery.Mode == "" {
		c.Discovery.Mode = "manual"
	}
	if c.Discovery.Interval == 0 {
		c.Discovery.Interval = 5 * time.Minute
	}
	if c.Discovery.Channel == "" {
		c.Discovery.Channel = "tenantdb:discover"
	}
	if c.NegativeCache.Kind == "" {
		c.NegativeCache.Kind = "memory"
	}
	if c.NegativeCache.TTL == 0 {
		c.NegativeCache.TTL = 30 * time.Second
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "tenantdb"
	}
	if c.Admin.Issuer == "" {
		c.Admin.Issuer = "tenantdb"
	}
	if c.Admin.DiscoverWindow == 0 {
		c.Admin.DiscoverWindow = time.Minute
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return i, true, nil
}

func getEnvBool(key string) (bool, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return b, true, nil
}

func getEnvDur(key string) (time.Duration, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, false, fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	return d, true, nil
}

// applyEnvOverrides: pisa el YAML con variables de entorno. Un valor mal
// formado es un error (no se ignora en silencio).
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"APP_ENV":             &c.App.Env,
		"LOG_LEVEL":           &c.App.LogLevel,
		"SERVER_ADDR":         &c.Server.Addr,
		"DEFAULT_DB_DRIVER":   &c.DefaultTenant.Driver,
		"DEFAULT_DB_URL":      &c.DefaultTenant.URL,
		"DEFAULT_DB_USERNAME": &c.DefaultTenant.Username,
		"DEFAULT_DB_PASSWORD": &c.DefaultTenant.Password,
		"CATALOG_KIND":        &c.Catalog.Kind,
		"CATALOG_TABLE":       &c.Catalog.Table,
		"CATALOG_FS_ROOT":     &c.Catalog.FSRoot,
		"DISCOVERY_MODE":      &c.Discovery.Mode,
		"DISCOVERY_CHANNEL":   &c.Discovery.Channel,
		"NEGATIVE_CACHE_KIND": &c.NegativeCache.Kind,
		"REDIS_ADDR":          &c.Redis.Addr,
		"REDIS_PASSWORD":      &c.Redis.Password,
		"REDIS_PREFIX":        &c.Redis.Prefix,
		"ADMIN_JWT_SECRET":    &c.Admin.JWTSecret,
		"ADMIN_ISSUER":        &c.Admin.Issuer,
	}
	for k, dst := range strs {
		if v, ok := getEnvStr(k); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"DEFAULT_DB_MAX_POOL_SIZE": &c.DefaultTenant.MaxPoolSize,
		"DEFAULT_DB_MAX_IDLE":      &c.DefaultTenant.MaxIdle,
		"REDIS_DB":                 &c.Redis.DB,
		"ADMIN_DISCOVER_LIMIT":     &c.Admin.DiscoverLimit,
	}
	for k, dst := range ints {
		v, ok, err := getEnvInt(k)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	durs := map[string]*time.Duration{
		"DEFAULT_DB_ACQUIRE_TIMEOUT": &c.DefaultTenant.AcquireTimeout,
		"DEFAULT_DB_MAX_LIFETIME":    &c.DefaultTenant.MaxLifetime,
		"POOL_CONNECT_TIMEOUT":       &c.Pool.ConnectTimeout,
		"POOL_PROVISION_TIMEOUT":     &c.Pool.ProvisionTimeout,
		"POOL_HEALTH_INTERVAL":       &c.Pool.HealthInterval,
		"DISCOVERY_INTERVAL":         &c.Discovery.Interval,
		"NEGATIVE_CACHE_TTL":         &c.NegativeCache.TTL,
		"SHUTDOWN_TIMEOUT":           &c.Server.ShutdownTimeout,
		"ADMIN_DISCOVER_WINDOW":      &c.Admin.DiscoverWindow,
	}
	for k, dst := range durs {
		v, ok, err := getEnvDur(k)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"DISCOVERY_ON_STARTUP": &c.Discovery.OnStartup,
		"METRICS_ENABLED":      &c.Metrics.Enabled,
		"METRICS_RUNTIME":      &c.Metrics.Runtime,
	}
	for k, dst := range bools {
		v, ok, err := getEnvBool(k)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	c.App.Env = strings.ToLower(c.App.Env)
	c.Catalog.Kind = strings.ToLower(c.Catalog.Kind)
	c.Discovery.Mode = strings.ToLower(c.Discovery.Mode)
	c.NegativeCache.Kind = strings.ToLower(c.NegativeCache.Kind)
	return nil
}

// Validate verifica combinaciones inválidas.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DefaultTenant.URL) == "" {
		errs = append(errs, errors.New("default_tenant.url is required"))
	}
	if strings.TrimSpace(c.DefaultTenant.Driver) == "" {
		errs = append(errs, errors.New("default_tenant.driver is required"))
	}
	if c.DefaultTenant.MaxPoolSize < 0 || c.DefaultTenant.MaxIdle < 0 {
		errs = append(errs, errors.New("default_tenant pool limits must be >= 0"))
	}
	switch c.Catalog.Kind {
	case "sql", "fs", "none":
	default:
		errs = append(errs, fmt.Errorf("catalog.kind %q (want sql|fs|none)", c.Catalog.Kind))
	}
	switch c.Discovery.Mode {
	case "manual":
	case "poll":
		if c.Discovery.Interval <= 0 {
			errs = append(errs, errors.New("discovery.interval must be > 0 in poll mode"))
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for discovery.mode=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("discovery.mode %q (want manual|poll|redis)", c.Discovery.Mode))
	}
	switch c.NegativeCache.Kind {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for negative_cache.kind=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("negative_cache.kind %q (want memory|redis)", c.NegativeCache.Kind))
	}
	if c.Admin.DiscoverLimit < 0 || c.Admin.DiscoverWindow <= 0 {
		errs = append(errs, errors.New("admin.discover_limit must be >= 0 and discover_window > 0"))
	}
	if c.App.Env == "prod" && len(c.Admin.JWTSecret) < 32 {
		errs = append(errs, errors.New("admin.jwt_secret must be at least 32 bytes in prod"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// UsesRedis reporta si algún componente necesita cliente Redis.
func (c *Config) UsesRedis() bool {
	return c.Discovery.Mode == "redis" || c.NegativeCache.Kind == "redis"
}
