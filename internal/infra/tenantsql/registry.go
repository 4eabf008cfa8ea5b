// Package tenantsql mantiene el registry de tenants y un pool de conexiones
// acotado por tenant (database-per-tenant).
package tenantsql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/store"
)

// Resolver obtiene la fuente de un tenant todavía no registrado.
// Para un tenant desconocido debe devolver un error que envuelva ErrNotFound.
type Resolver func(ctx context.Context, id TenantID) (Source, error)

// DefaultProvisionTimeout acota la provisión lazy cuando Options no lo fija.
const DefaultProvisionTimeout = 30 * time.Second

// Options personaliza el Registry.
type Options struct {
	Resolver Resolver
	Hooks    Hooks
	// ConnectTimeout acota el dial de cada conexión física (0 = usa el ctx).
	ConnectTimeout time.Duration
	// ProvisionTimeout acota una resolución lazy compartida (0 = 30s).
	ProvisionTimeout time.Duration
	// Open reemplaza la apertura vía store.Open (tests).
	Open func(ctx context.Context, id TenantID, src Source) (store.Conn, error)
}

// Entry es la vista pública de un tenant registrado.
type Entry struct {
	ID           TenantID
	Source       Source
	Pool         *Pool
	RegisteredAt time.Time
}

type entry struct {
	src          Source
	pool         *Pool
	registeredAt time.Time
}

// Registry mapea TenantID → (Source, Pool).
// Una entrada es visible solo con la fuente validada y el pool construido.
type Registry struct {
	mu      sync.RWMutex
	entries map[TenantID]*entry
	sf      singleflight.Group

	resolverMu sync.RWMutex
	resolver   Resolver

	hooks            Hooks
	connectTimeout   time.Duration
	provisionTimeout time.Duration
	open             func(ctx context.Context, id TenantID, src Source) (store.Conn, error)

	created atomic.Int64
}

// NewRegistry crea un Registry vacío.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		entries:          make(map[TenantID]*entry),
		resolver:         opts.Resolver,
		hooks:            opts.Hooks,
		connectTimeout:   opts.ConnectTimeout,
		provisionTimeout: opts.ProvisionTimeout,
		open:             opts.Open,
	}
	if r.provisionTimeout <= 0 {
		r.provisionTimeout = DefaultProvisionTimeout
	}
	if r.open == nil {
		r.open = r.storeOpen
	}
	return r
}

func (r *Registry) storeOpen(ctx context.Context, _ TenantID, src Source) (store.Conn, error) {
	return store.Open(ctx, store.Config{
		Driver:         src.Driver,
		URL:            src.URL,
		Username:       src.Username,
		Password:       src.Password,
		ConnectTimeout: r.connectTimeout,
	})
}

// SetResolver instala el resolver para provisión lazy (nil lo deshabilita).
func (r *Registry) SetResolver(fn Resolver) {
	r.resolverMu.Lock()
	r.resolver = fn
	r.resolverMu.Unlock()
}

func (r *Registry) getResolver() Resolver {
	r.resolverMu.RLock()
	defer r.resolverMu.RUnlock()
	return r.resolver
}

// Register agrega un tenant. Re-registrar la misma fuente es un no-op
// (created=false, err=nil); una fuente distinta retorna ErrConflict y deja
// la entrada existente intacta.
func (r *Registry) Register(ctx context.Context, id TenantID, src Source) (created bool, err error) {
	if !id.Valid() {
		return false, fmt.Errorf("%w: empty tenant id", ErrInvalidSource)
	}
	src = src.WithDefaults()
	if err := src.Validate(); err != nil {
		return false, fmt.Errorf("tenant %s: %w", id, err)
	}

	if e := r.get(id); e != nil {
		return false, r.compare(id, e, src)
	}

	pool := NewPool(id, src, func(ctx context.Context) (store.Conn, error) {
		return r.open(ctx, id, src)
	}, &r.hooks)

	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return false, r.compare(id, e, src)
	}
	r.entries[id] = &entry{src: src, pool: pool, registeredAt: time.Now()}
	r.mu.Unlock()

	r.created.Add(1)
	if r.hooks.OnPoolCreated != nil {
		r.hooks.OnPoolCreated(id)
	}
	logger.From(ctx).Info("tenant registered",
		logger.TenantID(id.String()),
		logger.Driver(src.Driver),
		logger.PoolMax(src.MaxPoolSize))
	return true, nil
}

func (r *Registry) compare(id TenantID, e *entry, src Source) error {
	if e.src.Equal(src) {
		return nil
	}
	return fmt.Errorf("%w: tenant %s (registered %q, got %q)", ErrConflict, id, e.src.Redacted(), src.Redacted())
}

func (r *Registry) get(id TenantID) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

// Lookup retorna la entrada del tenant o ErrNotFound.
func (r *Registry) Lookup(id TenantID) (Entry, error) {
	e := r.get(id)
	if e == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Entry{ID: id, Source: e.src, Pool: e.pool, RegisteredAt: e.registeredAt}, nil
}

// GetOrCreatePool devuelve el pool del tenant; si no está registrado lo provisiona
// vía Resolver. Llamadas concurrentes para el mismo id comparten una sola resolución,
// que corre desacoplada de la cancelación de cada caller y acotada por
// ProvisionTimeout. Cada caller deja de esperar cuando se cancela su propio ctx.
func (r *Registry) GetOrCreatePool(ctx context.Context, id TenantID) (*Pool, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: empty tenant id", ErrNotFound)
	}
	if e := r.get(id); e != nil {
		return e.pool, nil
	}

	ch := r.sf.DoChan(string(id), func() (any, error) {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.provisionTimeout)
		defer cancel()
		return r.provision(pctx, id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Pool), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: tenant %s: %w", ErrCancelled, id, ctx.Err())
	}
}

// provision resuelve y registra id. Solo "no existe" o una fuente inválida
// son ErrProvisioning; pool agotado, cancelación y fallas del catálogo
// conservan su clasificación.
func (r *Registry) provision(ctx context.Context, id TenantID) (*Pool, error) {
	if e := r.get(id); e != nil {
		return e.pool, nil
	}
	resolve := r.getResolver()
	if resolve == nil {
		return nil, fmt.Errorf("%w: tenant %s: %w", ErrProvisioning, id, ErrNotFound)
	}
	src, err := resolve(ctx, id)
	if err != nil {
		return nil, r.classify(ctx, id, err)
	}
	if _, err := r.Register(ctx, id, src); err != nil && !IsConflict(err) {
		return nil, fmt.Errorf("%w: %w", ErrProvisioning, err)
	}
	// en conflicto gana la entrada ya registrada
	e := r.get(id)
	if e == nil {
		return nil, fmt.Errorf("%w: tenant %s removed during provisioning", ErrProvisioning, id)
	}
	return e.pool, nil
}

func (r *Registry) classify(ctx context.Context, id TenantID, err error) error {
	switch {
	case IsProvisioning(err):
		return err
	case IsNotFound(err), errors.Is(err, ErrInvalidSource):
		return fmt.Errorf("%w: tenant %s: %w", ErrProvisioning, id, err)
	case ctx.Err() != nil:
		// venció ProvisionTimeout; ningún caller canceló
		return fmt.Errorf("tenant %s: provisioning timed out after %s: %w", id, r.provisionTimeout, context.DeadlineExceeded)
	case IsCancelled(err), IsPoolExhausted(err):
		return fmt.Errorf("tenant %s: %w", id, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: tenant %s: %w", ErrCancelled, id, err)
	default:
		return fmt.Errorf("tenant %s: resolve: %w", id, err)
	}
}

// Deregister quita el tenant y cierra su pool. Las conexiones en uso se cierran al devolverse.
func (r *Registry) Deregister(ctx context.Context, id TenantID) error {
	if id == DefaultTenantID {
		return ErrDefaultTenant
	}
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	err := e.pool.Close()
	logger.From(ctx).Info("tenant deregistered", logger.TenantID(id.String()), logger.Err(err))
	return err
}

// IDs retorna los ids registrados, ordenados.
func (r *Registry) IDs() []TenantID {
	r.mu.RLock()
	ids := make([]TenantID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len retorna el número de tenants registrados.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Created retorna cuántos pools se construyeron desde el arranque.
func (r *Registry) Created() int64 { return r.created.Load() }

// Stats devuelve un snapshot con los stats actuales de cada pool.
func (r *Registry) Stats() map[TenantID]PoolStat {
	r.mu.RLock()
	pools := make([]*Pool, 0, len(r.entries))
	for _, e := range r.entries {
		pools = append(pools, e.pool)
	}
	r.mu.RUnlock()

	out := make(map[TenantID]PoolStat, len(pools))
	for _, p := range pools {
		out[p.tenant] = p.Stat()
	}
	return out
}

// Close cierra todos los pools y vacía el registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[TenantID]*entry)
	r.mu.Unlock()

	var errs []error
	for id, e := range entries {
		if err := e.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
