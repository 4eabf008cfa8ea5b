package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	ajwt "github.com/dropDatabas3/tenantdb/internal/jwt"
	"github.com/dropDatabas3/tenantdb/internal/rate"
	"github.com/dropDatabas3/tenantdb/internal/tenantctx"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", seen)
}

func TestWithTenantBindsAndClears(t *testing.T) {
	var (
		got     tenantsql.TenantID
		binding *tenantctx.Binding
	)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = tenantctx.Current(r.Context())
		binding = tenantctx.FromContext(r.Context())
	}), WithTenant(TenantConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/?tenant=q-1", nil)
	req.Header.Set("X-Tenant-ID", "h-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, tenantsql.TenantID("h-1"), got, "header gana sobre query")

	_, bound := binding.Current()
	require.False(t, bound, "binding debe limpiarse al terminar el request")

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?tenant=q-1", nil))
	require.Equal(t, tenantsql.TenantID("q-1"), got)
}

func TestWithTenantClearsOnPanic(t *testing.T) {
	var binding *tenantctx.Binding
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		binding = tenantctx.FromContext(r.Context())
		panic("boom")
	}), WithRecover(), WithTenant(TenantConfig{}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "t1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	_, bound := binding.Current()
	require.False(t, bound)
}

func TestWithTenantRequiredAndOptional(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	Chain(http.HandlerFunc(ok), WithTenant(TenantConfig{})).ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var bound bool
	rec = httptest.NewRecorder()
	Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, bound = tenantctx.Current(r.Context())
		ok(w, r)
	}), WithTenant(TenantConfig{Optional: true})).ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, bound)
}

func TestConcurrentRequestsDoNotShareTenant(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := r.Header.Get("X-Tenant-ID")
		time.Sleep(time.Millisecond)
		got, _ := tenantctx.Current(r.Context())
		if string(got) != want {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		ok(w, r)
	}), WithTenant(TenantConfig{}))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Tenant-ID", []string{"a", "b", "c", "d"}[i%4])
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusNoContent {
				t.Errorf("request %d observed another tenant", i)
			}
		}(i)
	}
	wg.Wait()
}

func TestRequireAdmin(t *testing.T) {
	iss := ajwt.NewIssuer("tenantdb", "0123456789abcdef0123456789abcdef")
	var sub string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = GetAdminClaims(r.Context()).Subject
		ok(w, r)
	}), RequireAdmin(iss))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, _, err := iss.Sign("ops", time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "ops", sub)
}

type fakeObserver struct {
	mu       sync.Mutex
	paths    []string
	statuses []int
	inflight float64
}

func (f *fakeObserver) ObserveHTTP(method, path string, status int, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, method+" "+path)
	f.statuses = append(f.statuses, status)
}

func (f *fakeObserver) Inflight(delta float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight += delta
}

func TestWithMetricsUsesRoutePattern(t *testing.T) {
	obs := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(WithMetrics(obs))
	r.Get("/admin/tenants/{id}", ok)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/tenants/42", nil).WithContext(context.Background()))
	require.Equal(t, []string{"GET /admin/tenants/{id}"}, obs.paths)
	require.Equal(t, []int{http.StatusNoContent}, obs.statuses)
	require.Zero(t, obs.inflight)
}

type denyAfter struct{ n int }

func (d *denyAfter) Allow(ctx context.Context, key string) (rate.Result, error) {
	d.n--
	if d.n < 0 {
		return rate.Result{Allowed: false, RetryAfter: 1500 * time.Millisecond}, nil
	}
	return rate.Result{Allowed: true, Remaining: int64(d.n)}, nil
}

func TestWithRateLimit(t *testing.T) {
	h := Chain(http.HandlerFunc(ok), WithRateLimit(&denyAfter{n: 1}, "k"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}
