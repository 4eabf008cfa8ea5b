package middlewares

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPObserver lo implementa metrics.Metrics.
type HTTPObserver interface {
	ObserveHTTP(method, path string, status int, d time.Duration)
	Inflight(delta float64)
}

// WithMetrics registra latencia y status por patrón de ruta (no por path
// crudo, para no explotar la cardinalidad con ids de tenant).
func WithMetrics(obs HTTPObserver) Middleware {
	return func(next http.Handler) http.Handler {
		if obs == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			obs.Inflight(1)
			defer obs.Inflight(-1)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			path := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					path = p
				}
			}
			obs.ObserveHTTP(r.Method, path, rec.status, time.Since(start))
		})
	}
}
