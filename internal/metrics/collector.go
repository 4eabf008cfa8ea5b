package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
)

// statsSource es lo que el collector necesita del registry.
type statsSource interface {
	Stats() map[tenantsql.TenantID]tenantsql.PoolStat
}

// poolCollector expone gauges para los pools por tenant.
type poolCollector struct {
	src statsSource

	countDesc    *prometheus.Desc
	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
	maxDesc      *prometheus.Desc
	waitsDesc    *prometheus.Desc
}

func newPoolCollector(src statsSource) *poolCollector {
	return &poolCollector{
		src:          src,
		countDesc:    prometheus.NewDesc("tenant_pool_count", "Cantidad de pools de tenants activos", nil, nil),
		acquiredDesc: prometheus.NewDesc("tenant_pool_acquired", "Conexiones adquiridas por tenant", []string{"tenant"}, nil),
		idleDesc:     prometheus.NewDesc("tenant_pool_idle", "Conexiones inactivas por tenant", []string{"tenant"}, nil),
		totalDesc:    prometheus.NewDesc("tenant_pool_total", "Conexiones físicas abiertas por tenant", []string{"tenant"}, nil),
		maxDesc:      prometheus.NewDesc("tenant_pool_max", "Máximo de conexiones configurado por tenant", []string{"tenant"}, nil),
		waitsDesc:    prometheus.NewDesc("tenant_pool_waits_total", "Acquires que tuvieron que esperar", []string{"tenant"}, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
	ch <- c.maxDesc
	ch <- c.waitsDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.countDesc, prometheus.GaugeValue, float64(len(stats)))
	for id, s := range stats {
		t := id.String()
		ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(s.Acquired), t)
		ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(s.Idle), t)
		ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(s.Total), t)
		ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, float64(s.Max), t)
		ch <- prometheus.MustNewConstMetric(c.waitsDesc, prometheus.CounterValue, float64(s.Waits), t)
	}
}
