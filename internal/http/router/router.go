// Package router arma el árbol de rutas HTTP (chi).
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tenantdb/internal/http/controllers/health"
	"github.com/dropDatabas3/tenantdb/internal/http/controllers/probe"
	"github.com/dropDatabas3/tenantdb/internal/http/controllers/tenants"
	httperrors "github.com/dropDatabas3/tenantdb/internal/http/errors"
	mw "github.com/dropDatabas3/tenantdb/internal/http/middlewares"
	ajwt "github.com/dropDatabas3/tenantdb/internal/jwt"
	"github.com/dropDatabas3/tenantdb/internal/rate"
)

// Deps dependencias del router. Metrics y MetricsHandler son opcionales.
type Deps struct {
	Health  *health.Controller
	Tenants *tenants.Controller
	Probe   *probe.Controller

	Admin *ajwt.Issuer
	// DiscoverLimit acota POST /admin/tenants/discover (nil = sin límite).
	DiscoverLimit rate.Limiter

	Metrics        mw.HTTPObserver
	MetricsHandler http.Handler
}

// New construye el handler raíz.
//
//	GET    /healthz
//	GET    /readyz
//	GET    /metrics
//	GET    /admin/tenants
//	GET    /admin/tenants/{id}
//	POST   /admin/tenants/discover
//	DELETE /admin/tenants/{id}
//	POST   /admin/tenants/{id}/restore
//	GET    /v1/ping            (tenant: X-Tenant-ID | ?tenant=, default "0")
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithMetrics(d.Metrics),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})

	// infra: sin logging (muy frecuentes)
	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.WithLogging())

		r.Route("/admin/tenants", func(r chi.Router) {
			r.Use(mw.RequireAdmin(d.Admin))
			r.Get("/", d.Tenants.List)
			r.With(mw.WithRateLimit(d.DiscoverLimit, "admin:discover")).
				Post("/discover", d.Tenants.Discover)
			r.Get("/{id}", d.Tenants.Get)
			r.Delete("/{id}", d.Tenants.Delete)
			r.Post("/{id}/restore", d.Tenants.Restore)
		})

		r.With(mw.WithTenant(mw.TenantConfig{Optional: true})).
			Get("/v1/ping", d.Probe.Ping)
	})

	return r
}
