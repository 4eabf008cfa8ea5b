// Package app cablea los componentes del proceso a partir de config.Config:
// registry + router + provisioner + catálogo + discovery + HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/tenantdb/internal/cache"
	"github.com/dropDatabas3/tenantdb/internal/config"
	"github.com/dropDatabas3/tenantdb/internal/controlplane"
	cpfs "github.com/dropDatabas3/tenantdb/internal/controlplane/fs"
	cpsql "github.com/dropDatabas3/tenantdb/internal/controlplane/sql"
	"github.com/dropDatabas3/tenantdb/internal/discovery"
	"github.com/dropDatabas3/tenantdb/internal/http/controllers/health"
	"github.com/dropDatabas3/tenantdb/internal/http/controllers/probe"
	"github.com/dropDatabas3/tenantdb/internal/http/controllers/tenants"
	httprouter "github.com/dropDatabas3/tenantdb/internal/http/router"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	ajwt "github.com/dropDatabas3/tenantdb/internal/jwt"
	"github.com/dropDatabas3/tenantdb/internal/metrics"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/provisioner"
	"github.com/dropDatabas3/tenantdb/internal/rate"
	"github.com/dropDatabas3/tenantdb/internal/router"
)

// App proceso cableado. Los campos son de solo lectura después de New.
type App struct {
	Config      *config.Config
	Registry    *tenantsql.Registry
	Router      *router.Router
	Provisioner *provisioner.Provisioner
	Catalog     controlplane.Catalog
	Discovery   *discovery.Service
	Metrics     *metrics.Metrics
	Redis       *redis.Client

	negCache cache.Client
}

// Deps permite inyectar piezas en tests. Todo es opcional.
type Deps struct {
	Redis   *redis.Client
	Catalog controlplane.Catalog
	Options tenantsql.Options
}

// SourceFrom convierte la sección de config en un Source.
func SourceFrom(ds config.DataSource) tenantsql.Source {
	return tenantsql.Source{
		Driver:         ds.Driver,
		URL:            ds.URL,
		Username:       ds.Username,
		Password:       ds.Password,
		MaxPoolSize:    ds.MaxPoolSize,
		MaxIdle:        ds.MaxIdle,
		AcquireTimeout: ds.AcquireTimeout,
		MaxLifetime:    ds.MaxLifetime,
	}
}

// New arma el grafo de dependencias sin tocar la red (salvo el ping a Redis
// cuando hace falta). La conexión a la base default ocurre en Start.
func New(cfg *config.Config, deps Deps) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New(cfg.Metrics.Runtime), Redis: deps.Redis}

	if a.Redis == nil && cfg.UsesRedis() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	opts := deps.Options
	opts.Hooks = a.Metrics.Hooks()
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = cfg.Pool.ConnectTimeout
	}
	if opts.ProvisionTimeout == 0 {
		opts.ProvisionTimeout = cfg.Pool.ProvisionTimeout
	}
	a.Registry = tenantsql.NewRegistry(opts)
	a.Router = router.New(a.Registry)
	if err := a.Metrics.WatchRegistry(a.Registry); err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	cat, err := a.buildCatalog(deps.Catalog)
	if err != nil {
		return nil, err
	}
	a.Catalog = cat

	switch cfg.NegativeCache.Kind {
	case "redis":
		a.negCache = cache.NewRedisFromClient(a.Redis, cfg.Redis.Prefix)
	default:
		a.negCache = cache.NewMemory(cfg.Redis.Prefix)
	}

	a.Provisioner = provisioner.New(a.Registry, a.Router, provisioner.Options{
		Catalog:       a.Catalog,
		NegativeCache: a.negCache,
		NegativeTTL:   cfg.NegativeCache.TTL,
		OnDiscover:    a.Metrics.OnDiscover,
		Tombstones:    a.negCache,
	})
	if a.Catalog != nil {
		a.Registry.SetResolver(a.Provisioner.Resolve)

		mode, err := discovery.ParseMode(cfg.Discovery.Mode)
		if err != nil {
			return nil, err
		}
		a.Discovery, err = discovery.New(a.Provisioner, discovery.Config{
			Mode:      mode,
			Interval:  cfg.Discovery.Interval,
			Channel:   cfg.Discovery.Channel,
			OnStartup: cfg.Discovery.OnStartup,
		}, a.Redis)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) buildCatalog(injected controlplane.Catalog) (controlplane.Catalog, error) {
	if injected != nil {
		return injected, nil
	}
	switch a.Config.Catalog.Kind {
	case "none":
		return nil, nil
	case "fs":
		return cpfs.New(a.Config.Catalog.FSRoot), nil
	default:
		c, err := cpsql.New(a.Router, cpsql.Options{Table: a.Config.Catalog.Table})
		if err != nil {
			return nil, fmt.Errorf("app: catalog: %w", err)
		}
		return c, nil
	}
}

// Start registra el tenant default y verifica conectividad. Un error acá
// debe abortar el arranque.
func (a *App) Start(ctx context.Context) error {
	src := SourceFrom(a.Config.DefaultTenant)
	if err := a.Provisioner.InitializeDefault(ctx, src); err != nil {
		return err
	}
	logger.From(ctx).Info("default tenant ready",
		logger.Component("app"),
		logger.Source(src.Redacted()))
	return nil
}

// Handler construye el árbol HTTP.
func (a *App) Handler() http.Handler {
	var trigger func() bool
	var disc tenants.Discoverer = a.Provisioner
	if a.Discovery != nil {
		trigger = a.Discovery.Trigger
	}
	return httprouter.New(httprouter.Deps{
		Health: health.NewController(a.Provisioner, func(ctx context.Context, id tenantsql.TenantID) error {
			return a.Router.WithConn(ctx, func(ctx context.Context, c *tenantsql.Conn) error {
				if err := c.Ping(ctx); err != nil {
					c.MarkBroken()
					return err
				}
				return nil
			})
		}),
		Tenants:        tenants.NewController(tenants.Deps{Registry: a.Registry, Discoverer: disc, Lifecycle: a.Provisioner, Trigger: trigger}),
		Probe:          probe.NewController(a.Router),
		Admin:          ajwt.NewIssuer(a.Config.Admin.Issuer, a.Config.Admin.JWTSecret),
		DiscoverLimit:  a.discoverLimiter(),
		Metrics:        a.Metrics,
		MetricsHandler: a.metricsHandler(),
	})
}

// discoverLimiter compartido vía Redis cuando hay Redis (el límite es por
// flota, no por instancia).
func (a *App) discoverLimiter() rate.Limiter {
	n := a.Config.Admin.DiscoverLimit
	if n <= 0 {
		return nil
	}
	if a.Redis != nil {
		return rate.NewRedisLimiter(a.Redis, a.Config.Redis.Prefix+":rl:", n, a.Config.Admin.DiscoverWindow)
	}
	return rate.NewMemoryLimiter(n, a.Config.Admin.DiscoverWindow)
}

func (a *App) metricsHandler() http.Handler {
	if !a.Config.Metrics.Enabled {
		return nil
	}
	return a.Metrics.Handler()
}

// RunDiscovery bloquea corriendo la política de discovery hasta que ctx se
// cancela. Sin catálogo retorna enseguida.
func (a *App) RunDiscovery(ctx context.Context) error {
	if a.Discovery == nil {
		return nil
	}
	return a.Discovery.Run(ctx)
}

// RunJanitor recicla conexiones idle vencidas o caídas hasta que ctx se cancela.
func (a *App) RunJanitor(ctx context.Context) error {
	return a.Registry.RunJanitor(ctx, a.Config.Pool.HealthInterval)
}

// Close libera pools y clientes. Idempotente a nivel de cada recurso.
func (a *App) Close() error {
	var errs []error
	if err := a.Registry.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.negCache != nil {
		if err := a.negCache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
