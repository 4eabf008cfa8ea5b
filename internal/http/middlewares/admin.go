package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/tenantdb/internal/http/errors"
	ajwt "github.com/dropDatabas3/tenantdb/internal/jwt"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
)

// RequireAdmin exige "Authorization: Bearer <jwt>" firmado con el secreto admin.
// Sin secreto configurado las rutas admin quedan cerradas (401).
func RequireAdmin(iss *ajwt.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
				httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("missing bearer token"))
				return
			}
			cl, err := iss.Parse(strings.TrimSpace(h[7:]))
			if err != nil {
				logger.From(r.Context()).Warn("admin token rejected", logger.Op("RequireAdmin"), logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrUnauthorized.WithCause(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(setAdminClaims(r.Context(), cl)))
		})
	}
}
