package tenantsql

import (
	"context"
	"time"

	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
)

// SweepResult conexiones idle descartadas por un Sweep.
type SweepResult struct {
	Expired int
	Broken  int
}

// Sweep revisa las conexiones idle: cierra las vencidas por MaxLifetime y
// hace ping a las demás, cerrando las que no responden.
//
// Cada conexión revisada toma un permiso del semáforo mientras dura el ping,
// así el total nunca supera MaxPoolSize; si no hay permisos libres se revisan
// menos (el pool está ocupado y las idle se reciclan solas).
func (p *Pool) Sweep(ctx context.Context) SweepResult {
	var res SweepResult

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return res
	}
	var expired []*pooledConn
	alive := p.idle[:0]
	for _, pc := range p.idle {
		if p.expired(pc) {
			expired = append(expired, pc)
			continue
		}
		alive = append(alive, pc)
	}
	for i := len(alive); i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = alive
	p.total -= len(expired)
	candidates := len(p.idle)
	p.mu.Unlock()

	closeAll(expired)
	res.Expired = len(expired)

	permits := 0
	for permits < candidates && p.sem.TryAcquire(1) {
		permits++
	}
	if permits == 0 {
		return res
	}

	// las más viejas están al principio (el idle es LIFO por el final)
	p.mu.Lock()
	n := permits
	if n > len(p.idle) || p.closed {
		n = len(p.idle)
		if p.closed {
			n = 0
		}
	}
	checking := append([]*pooledConn(nil), p.idle[:n]...)
	rest := copy(p.idle, p.idle[n:])
	for i := rest; i < len(p.idle); i++ {
		p.idle[i] = nil
	}
	p.idle = p.idle[:rest]
	p.acquired += n
	p.mu.Unlock()
	if extra := permits - n; extra > 0 {
		p.sem.Release(int64(extra))
	}
	if n == 0 {
		return res
	}

	healthy := make([]*pooledConn, 0, n)
	var broken []*pooledConn
	for _, pc := range checking {
		if err := pc.raw.Ping(ctx); err != nil {
			logger.From(ctx).Debug("idle connection failed health check",
				logger.TenantID(p.tenant.String()), logger.ConnID(pc.id), logger.Err(err))
			broken = append(broken, pc)
			continue
		}
		healthy = append(healthy, pc)
	}

	p.mu.Lock()
	p.acquired -= n
	if p.closed {
		broken = append(broken, healthy...)
		healthy = nil
	}
	room := p.src.MaxIdle - len(p.idle)
	if room < 0 {
		room = 0
	}
	if len(healthy) > room {
		broken = append(broken, healthy[room:]...)
		healthy = healthy[:room]
	}
	// vuelven al fondo: siguen siendo las más viejas
	p.idle = append(healthy, p.idle...)
	p.total -= len(broken)
	p.mu.Unlock()

	closeAll(broken)
	res.Broken = len(broken)
	p.sem.Release(int64(n))
	return res
}

// Sweep corre Pool.Sweep sobre todos los pools registrados.
func (r *Registry) Sweep(ctx context.Context) SweepResult {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.entries))
	for _, e := range r.entries {
		pools = append(pools, e.pool)
	}
	r.mu.RUnlock()

	var total SweepResult
	for _, p := range pools {
		if ctx.Err() != nil {
			break
		}
		res := p.Sweep(ctx)
		total.Expired += res.Expired
		total.Broken += res.Broken
	}
	return total
}

// RunJanitor ejecuta Sweep cada interval hasta que ctx se cancela.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	log := logger.From(ctx).With(logger.Component("tenantsql"), logger.Op("janitor"))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			res := r.Sweep(ctx)
			if res.Expired+res.Broken > 0 {
				log.Info("idle connections recycled",
					logger.Any("expired", res.Expired),
					logger.Any("broken", res.Broken))
			}
		}
	}
}
