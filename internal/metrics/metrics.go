// Package metrics expone métricas Prometheus de los pools por tenant, del
// discovery y de la API HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
)

// Metrics agrupa los collectors del proceso sobre un registry propio.
type Metrics struct {
	reg *prometheus.Registry

	poolsCreated  prometheus.Counter
	poolsClosed   prometheus.Counter
	exhausted     *prometheus.CounterVec
	doubleRelease *prometheus.CounterVec
	acquireWait   *prometheus.HistogramVec
	discoveryRuns *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight prometheus.Gauge
}

// New crea y registra las métricas. withRuntime agrega go_* y process_*.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		poolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenant_pools_created_total",
			Help: "Pools de tenant construidos desde el arranque",
		}),
		poolsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenant_pools_closed_total",
			Help: "Pools de tenant cerrados (deregister o shutdown)",
		}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_pool_exhausted_total",
			Help: "Acquires que vencieron el timeout esperando conexión",
		}, []string{"tenant"}),
		doubleRelease: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_pool_double_release_total",
			Help: "Devoluciones repetidas de una misma conexión",
		}, []string{"tenant"}),
		acquireWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenant_pool_acquire_wait_seconds",
			Help:    "Espera por un permiso del pool",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"tenant"}),
		discoveryRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenant_discovery_runs_total",
			Help: "Corridas de discovery por resultado",
		}, []string{"result"}), // ok|partial|error
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo",
		}),
	}
	m.reg.MustRegister(
		m.poolsCreated, m.poolsClosed, m.exhausted, m.doubleRelease,
		m.acquireWait, m.discoveryRuns,
		m.httpRequests, m.httpDuration, m.httpInflight,
	)
	if withRuntime {
		m.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry expone el registry (tests, collectors extra).
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Hooks retorna los callbacks a instalar en tenantsql.Options.
func (m *Metrics) Hooks() tenantsql.Hooks {
	return tenantsql.Hooks{
		OnPoolCreated: func(tenantsql.TenantID) { m.poolsCreated.Inc() },
		OnPoolClosed:  func(tenantsql.TenantID) { m.poolsClosed.Inc() },
		OnAcquireWait: func(id tenantsql.TenantID, d time.Duration) {
			m.acquireWait.WithLabelValues(id.String()).Observe(d.Seconds())
		},
		OnExhausted: func(id tenantsql.TenantID) {
			m.exhausted.WithLabelValues(id.String()).Inc()
		},
		OnDoubleRelease: func(id tenantsql.TenantID) {
			m.doubleRelease.WithLabelValues(id.String()).Inc()
		},
	}
}

// OnDiscover cuenta una corrida de discovery.
func (m *Metrics) OnDiscover(result string) { m.discoveryRuns.WithLabelValues(result).Inc() }

// WatchRegistry registra el collector de gauges por pool.
func (m *Metrics) WatchRegistry(r *tenantsql.Registry) error {
	return m.reg.Register(newPoolCollector(r))
}

// ObserveHTTP registra un request terminado.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Inflight ajusta el gauge de requests en vuelo.
func (m *Metrics) Inflight(delta float64) { m.httpInflight.Add(delta) }
