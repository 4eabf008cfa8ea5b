package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/tenantdb/internal/http/errors"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/tenantctx"
)

// TenantResolver obtiene el tenant id de un request ("" si no viene).
type TenantResolver func(r *http.Request) string

// HeaderTenantResolver resuelve usando un header.
func HeaderTenantResolver(name string) TenantResolver {
	if name == "" {
		name = "X-Tenant-ID"
	}
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

// QueryTenantResolver resuelve usando un query parameter.
func QueryTenantResolver(name string) TenantResolver {
	if name == "" {
		name = "tenant"
	}
	return func(r *http.Request) string {
		return strings.TrimSpace(r.URL.Query().Get(name))
	}
}

// ChainResolvers retorna el primer resultado no vacío.
func ChainResolvers(resolvers ...TenantResolver) TenantResolver {
	return func(r *http.Request) string {
		for _, res := range resolvers {
			if id := res(r); id != "" {
				return id
			}
		}
		return ""
	}
}

// TenantConfig configura WithTenant.
type TenantConfig struct {
	// Resolver default: X-Tenant-ID -> ?tenant=
	Resolver TenantResolver
	// Optional: sin tenant el request sigue sin binding (el router usa el default).
	Optional bool
}

// WithTenant abre la unidad de trabajo del request: crea el binding en el
// contexto, lo setea con el tenant resuelto y lo limpia al terminar, pase lo
// que pase en el handler.
func WithTenant(cfg TenantConfig) Middleware {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = ChainResolvers(HeaderTenantResolver("X-Tenant-ID"), QueryTenantResolver("tenant"))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := resolver(r)
			if raw == "" && !cfg.Optional {
				httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("missing tenant identifier"))
				return
			}

			ctx, b := tenantctx.Begin(r.Context())
			defer b.Clear()

			if raw != "" {
				id := tenantsql.TenantID(raw)
				if !id.Valid() {
					httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid tenant identifier"))
					return
				}
				b.Set(id)
				ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.TenantID(id.String())))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
