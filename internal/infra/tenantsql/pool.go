package tenantsql

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/store"
)

// OpenFunc abre una conexión física para el tenant.
type OpenFunc func(ctx context.Context) (store.Conn, error)

// PoolStat es un snapshot del estado de un pool específico.
type PoolStat struct {
	Tenant    TenantID
	Acquired  int
	Idle      int
	Total     int
	Max       int
	Waits     int64
	Exhausted int64
}

// Hooks callbacks opcionales para métricas. Todos pueden ser nil.
type Hooks struct {
	OnPoolCreated   func(id TenantID)
	OnPoolClosed    func(id TenantID)
	OnAcquireWait   func(id TenantID, d time.Duration)
	OnExhausted     func(id TenantID)
	OnDoubleRelease func(id TenantID)
}

type pooledConn struct {
	id        string
	raw       store.Conn
	createdAt time.Time
}

// Pool es el pool acotado de conexiones de UN tenant.
//
// El semáforo (FIFO) limita conexiones en uso a MaxPoolSize; como las idle
// solo existen sin permiso tomado, el total de conexiones físicas nunca lo supera.
type Pool struct {
	tenant TenantID
	src    Source
	open   OpenFunc
	hooks  *Hooks
	sem    *semaphore.Weighted
	now    func() time.Time

	mu       sync.Mutex
	idle     []*pooledConn
	acquired int
	total    int
	closed   bool

	waits     atomic.Int64
	exhausted atomic.Int64
}

// NewPool crea el pool. No abre conexiones: la primera se abre en Acquire.
func NewPool(id TenantID, src Source, open OpenFunc, hooks *Hooks) *Pool {
	src = src.WithDefaults()
	if hooks == nil {
		hooks = &Hooks{}
	}
	return &Pool{
		tenant: id,
		src:    src,
		open:   open,
		hooks:  hooks,
		sem:    semaphore.NewWeighted(int64(src.MaxPoolSize)),
		now:    time.Now,
	}
}

// Tenant retorna el id dueño del pool.
func (p *Pool) Tenant() TenantID { return p.tenant }

// Source retorna la fuente (con defaults aplicados).
func (p *Pool) Source() Source { return p.src }

// Acquire obtiene una conexión, esperando a lo sumo AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %w", ErrCancelled, p.tenant, err)
	}
	if p.isClosed() {
		return nil, fmt.Errorf("%w: tenant %s", ErrPoolClosed, p.tenant)
	}

	start := p.now()
	if !p.sem.TryAcquire(1) {
		p.waits.Add(1)
		wctx, cancel := context.WithTimeout(ctx, p.src.AcquireTimeout)
		err := p.sem.Acquire(wctx, 1)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: tenant %s: %w", ErrCancelled, p.tenant, ctx.Err())
			}
			p.exhausted.Add(1)
			if p.hooks.OnExhausted != nil {
				p.hooks.OnExhausted(p.tenant)
			}
			logger.From(ctx).Warn("tenant pool exhausted",
				logger.TenantID(p.tenant.String()),
				logger.PoolMax(p.src.MaxPoolSize),
				logger.Duration(p.src.AcquireTimeout))
			return nil, fmt.Errorf("%w: tenant %s: no connection within %s", ErrPoolExhausted, p.tenant, p.src.AcquireTimeout)
		}
	}
	if p.hooks.OnAcquireWait != nil {
		p.hooks.OnAcquireWait(p.tenant, p.now().Sub(start))
	}

	pc, expired, err := p.takeIdle()
	closeAll(expired)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	if pc == nil {
		pc, err = p.dial(ctx)
		if err != nil {
			p.sem.Release(1)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: tenant %s: %w", ErrCancelled, p.tenant, ctx.Err())
			}
			return nil, fmt.Errorf("tenant %s: open connection: %w", p.tenant, err)
		}
	}
	return &Conn{pool: p, pc: pc}, nil
}

// takeIdle saca una conexión idle (LIFO) y devuelve las vencidas para cerrar fuera del lock.
func (p *Pool) takeIdle() (*pooledConn, []*pooledConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, nil, fmt.Errorf("%w: tenant %s", ErrPoolClosed, p.tenant)
	}
	var expired []*pooledConn
	for len(p.idle) > 0 {
		n := len(p.idle) - 1
		pc := p.idle[n]
		p.idle[n] = nil
		p.idle = p.idle[:n]
		if p.expired(pc) {
			p.total--
			expired = append(expired, pc)
			continue
		}
		p.acquired++
		return pc, expired, nil
	}
	// reservamos el lugar antes de dialar
	p.acquired++
	p.total++
	return nil, expired, nil
}

func (p *Pool) dial(ctx context.Context) (*pooledConn, error) {
	raw, err := p.open(ctx)
	if err != nil {
		p.mu.Lock()
		p.acquired--
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	pc := &pooledConn{id: uuid.NewString(), raw: raw, createdAt: p.now()}
	logger.From(ctx).Debug("tenant connection opened",
		logger.TenantID(p.tenant.String()),
		logger.ConnID(pc.id),
		logger.Driver(raw.Driver()))
	return pc, nil
}

func (p *Pool) expired(pc *pooledConn) bool {
	return p.src.MaxLifetime > 0 && p.now().Sub(pc.createdAt) >= p.src.MaxLifetime
}

// Release devuelve la conexión al pool. Una segunda devolución del mismo
// handle retorna ErrRelease y no altera el pool.
func (p *Pool) Release(c *Conn) error {
	if c == nil {
		return fmt.Errorf("%w: nil connection", ErrRelease)
	}
	if c.pool != p {
		return fmt.Errorf("%w: connection of tenant %s released into tenant %s", ErrRelease, c.pool.tenant, p.tenant)
	}
	if !c.released.CompareAndSwap(false, true) {
		if p.hooks.OnDoubleRelease != nil {
			p.hooks.OnDoubleRelease(p.tenant)
		}
		logger.L().Warn("connection released twice",
			logger.TenantID(p.tenant.String()),
			logger.ConnID(c.pc.id))
		return fmt.Errorf("%w: tenant %s conn %s", ErrRelease, p.tenant, c.pc.id)
	}

	pc := c.pc
	p.mu.Lock()
	p.acquired--
	keep := !p.closed && !c.broken.Load() && len(p.idle) < p.src.MaxIdle && !p.expired(pc)
	if keep {
		p.idle = append(p.idle, pc)
	} else {
		p.total--
	}
	p.mu.Unlock()

	if !keep {
		closeConn(pc)
	}
	p.sem.Release(1)
	return nil
}

// Stat retorna un snapshot del pool.
func (p *Pool) Stat() PoolStat {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStat{
		Tenant:    p.tenant,
		Acquired:  p.acquired,
		Idle:      len(p.idle),
		Total:     p.total,
		Max:       p.src.MaxPoolSize,
		Waits:     p.waits.Load(),
		Exhausted: p.exhausted.Load(),
	}
}

// Close cierra las conexiones idle; las que estén en uso se cierran al devolverse.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.total -= len(idle)
	p.mu.Unlock()

	var errs []error
	for _, pc := range idle {
		if err := pc.raw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.hooks.OnPoolClosed != nil {
		p.hooks.OnPoolClosed(p.tenant)
	}
	return errors.Join(errs...)
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func closeAll(pcs []*pooledConn) {
	for _, pc := range pcs {
		closeConn(pc)
	}
}

func closeConn(pc *pooledConn) {
	if err := pc.raw.Close(); err != nil {
		logger.L().Debug("close connection", logger.ConnID(pc.id), logger.Err(err))
	}
}

// Conn es el handle de UNA checkout. Cada Acquire devuelve un handle nuevo,
// aunque la conexión física sea reutilizada.
type Conn struct {
	pool     *Pool
	pc       *pooledConn
	released atomic.Bool
	broken   atomic.Bool
}

// ID identificador de la conexión física.
func (c *Conn) ID() string { return c.pc.id }

// Tenant dueño de la conexión.
func (c *Conn) Tenant() TenantID { return c.pool.tenant }

// Driver nombre canónico del driver.
func (c *Conn) Driver() string { return c.pc.raw.Driver() }

// Raw expone la conexión del driver (ej: para type assert a *pgx.Conn).
func (c *Conn) Raw() store.Conn { return c.pc.raw }

// MarkBroken hace que Release cierre la conexión en vez de dejarla idle.
func (c *Conn) MarkBroken() { c.broken.Store(true) }

// Released reporta si el handle ya fue devuelto.
func (c *Conn) Released() bool { return c.released.Load() }

// Release devuelve la conexión a su pool.
func (c *Conn) Release() error { return c.pool.Release(c) }

func (c *Conn) Ping(ctx context.Context) error {
	if c.released.Load() {
		return c.useAfterRelease()
	}
	return c.pc.raw.Ping(ctx)
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if c.released.Load() {
		return 0, c.useAfterRelease()
	}
	return c.pc.raw.Exec(ctx, sql, args...)
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (store.Rows, error) {
	if c.released.Load() {
		return nil, c.useAfterRelease()
	}
	return c.pc.raw.Query(ctx, sql, args...)
}

func (c *Conn) useAfterRelease() error {
	return fmt.Errorf("%w: tenant %s conn %s used after release", ErrRelease, c.pool.tenant, c.pc.id)
}
