// Package provisioner registra el tenant default al arranque y el resto de los
// tenants a partir del catálogo (discovery explícito o lazy en la primera referencia).
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/tenantdb/internal/cache"
	"github.com/dropDatabas3/tenantdb/internal/controlplane"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
)

var (
	// ErrStartup el tenant default no se pudo registrar o no responde. Aborta el arranque.
	ErrStartup = errors.New("tenant startup failed")
	// ErrNotReady se intentó discovery/resolución antes de InitializeDefault.
	ErrNotReady = errors.New("provisioner: default tenant not initialized")
)

// State del provisioner.
type State int32

const (
	Unstarted State = iota
	DefaultReady
	Operational
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case DefaultReady:
		return "default_ready"
	case Operational:
		return "operational"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conns es el subconjunto del router usado para el check de conectividad.
type Conns interface {
	AcquireFor(ctx context.Context, id tenantsql.TenantID) (*tenantsql.Conn, error)
	Release(c *tenantsql.Conn) error
}

// Options configura el Provisioner.
type Options struct {
	Catalog controlplane.Catalog
	// NegativeCache recuerda ids desconocidos por NegativeTTL (nil = sin cache).
	NegativeCache cache.Client
	NegativeTTL   time.Duration
	// OnDiscover se llama al final de cada discovery con ok|partial|error.
	OnDiscover func(result string)
	// Tombstones guarda los ids dados de baja vía Deprovision (nil = en memoria).
	// Con Redis la baja se respeta en toda la flota.
	Tombstones cache.Client
}

// Provisioner orquesta el registro de tenants.
type Provisioner struct {
	reg   *tenantsql.Registry
	conns Conns

	catalog    controlplane.Catalog
	neg        cache.Client
	negTTL     time.Duration
	tombs      cache.Client
	onDiscover func(string)

	state   atomic.Int32
	mu      sync.Mutex // serializa corridas de discovery
	lastRun atomic.Pointer[Report]
}

const defaultNegativeTTL = 30 * time.Second

// New crea el Provisioner.
func New(reg *tenantsql.Registry, conns Conns, opts Options) *Provisioner {
	p := &Provisioner{
		reg:        reg,
		conns:      conns,
		catalog:    opts.Catalog,
		neg:        opts.NegativeCache,
		negTTL:     opts.NegativeTTL,
		onDiscover: opts.OnDiscover,
		tombs:      opts.Tombstones,
	}
	if p.tombs == nil {
		p.tombs = cache.NewMemory("")
	}
	if p.negTTL <= 0 {
		p.negTTL = defaultNegativeTTL
	}
	return p
}

// State retorna el estado actual.
func (p *Provisioner) State() State { return State(p.state.Load()) }

// LastReport retorna el reporte del último discovery (nil si no corrió).
func (p *Provisioner) LastReport() *Report { return p.lastRun.Load() }

// InitializeDefault registra el tenant default y verifica conectividad
// (acquire, ping, release). Cualquier falla se reporta como ErrStartup.
func (p *Provisioner) InitializeDefault(ctx context.Context, src tenantsql.Source) error {
	log := logger.From(ctx).With(logger.Component("provisioner"), logger.TenantID(tenantsql.DefaultTenantID.String()))

	if _, err := p.reg.Register(ctx, tenantsql.DefaultTenantID, src); err != nil {
		return fmt.Errorf("%w: register default tenant: %w", ErrStartup, err)
	}

	conn, err := p.conns.AcquireFor(ctx, tenantsql.DefaultTenantID)
	if err != nil {
		return fmt.Errorf("%w: connect default tenant: %w", ErrStartup, err)
	}
	perr := conn.Ping(ctx)
	if perr != nil {
		conn.MarkBroken()
	}
	if err := p.conns.Release(conn); err != nil && perr == nil {
		perr = err
	}
	if perr != nil {
		return fmt.Errorf("%w: ping default tenant: %w", ErrStartup, perr)
	}

	p.state.CompareAndSwap(int32(Unstarted), int32(DefaultReady))
	log.Info("default tenant ready", logger.Driver(src.WithDefaults().Driver))
	return nil
}

// Issue describe una fila del catálogo que no se registró.
type Issue struct {
	ID  tenantsql.TenantID
	Err error
}

// Report resume una corrida de discovery.
type Report struct {
	Added     []tenantsql.TenantID
	Unchanged []tenantsql.TenantID
	Skipped   []tenantsql.TenantID
	Conflicts []Issue
	Invalid   []Issue
	StartedAt time.Time
	Duration  time.Duration
}

// Err une conflictos y filas inválidas (nil si no hubo).
func (r Report) Err() error {
	var errs []error
	for _, is := range r.Conflicts {
		errs = append(errs, is.Err)
	}
	for _, is := range r.Invalid {
		errs = append(errs, fmt.Errorf("tenant %s: %w", is.ID, is.Err))
	}
	return errors.Join(errs...)
}

// Result clasifica la corrida: ok|partial.
func (r Report) Result() string {
	if len(r.Conflicts) > 0 || len(r.Invalid) > 0 {
		return "partial"
	}
	return "ok"
}

func (r Report) String() string {
	return fmt.Sprintf("added=%d unchanged=%d skipped=%d conflicts=%d invalid=%d",
		len(r.Added), len(r.Unchanged), len(r.Skipped), len(r.Conflicts), len(r.Invalid))
}

// DiscoverAndRegister lista el catálogo y registra los tenants nuevos.
// Filas idénticas se saltean; conflictos e inválidas se reportan y nunca
// pisan una entrada existente. Corridas concurrentes se serializan.
func (p *Provisioner) DiscoverAndRegister(ctx context.Context) (Report, error) {
	if p.State() == Unstarted {
		return Report{}, ErrNotReady
	}
	if p.catalog == nil {
		return Report{}, errors.New("provisioner: no catalog configured")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	log := logger.From(ctx).With(logger.Component("provisioner"), logger.Op("discover"))
	rep := Report{StartedAt: time.Now()}

	rows, err := p.catalog.List(ctx)
	if err != nil {
		p.notify("error")
		log.Error("catalog list failed", logger.Err(err))
		return rep, fmt.Errorf("discover: list catalog: %w", err)
	}

	for _, row := range rows {
		if row.ID == tenantsql.DefaultTenantID {
			rep.Skipped = append(rep.Skipped, row.ID)
			continue
		}
		if row.Err != nil {
			rep.Invalid = append(rep.Invalid, Issue{ID: row.ID, Err: row.Err})
			continue
		}
		gone, err := p.deprovisioned(ctx, row.ID)
		if err != nil {
			rep.Invalid = append(rep.Invalid, Issue{ID: row.ID, Err: err})
			continue
		}
		if gone {
			rep.Skipped = append(rep.Skipped, row.ID)
			continue
		}
		created, err := p.reg.Register(ctx, row.ID, row.Source)
		switch {
		case tenantsql.IsConflict(err):
			rep.Conflicts = append(rep.Conflicts, Issue{ID: row.ID, Err: err})
			log.Warn("tenant source conflict", logger.TenantID(row.ID.String()), logger.Err(err))
		case err != nil:
			rep.Invalid = append(rep.Invalid, Issue{ID: row.ID, Err: err})
			log.Warn("invalid tenant row", logger.TenantID(row.ID.String()), logger.Err(err))
		case created:
			rep.Added = append(rep.Added, row.ID)
			p.forget(ctx, row.ID)
		default:
			rep.Unchanged = append(rep.Unchanged, row.ID)
		}
	}

	rep.Duration = time.Since(rep.StartedAt)
	p.state.Store(int32(Operational))
	p.lastRun.Store(&rep)
	p.notify(rep.Result())
	log.Info("discovery finished",
		logger.String("result", rep.Result()),
		logger.Count(len(rows)),
		logger.String("summary", rep.String()),
		logger.Duration(rep.Duration))
	return rep, rep.Err()
}

// Resolve implementa tenantsql.Resolver: busca un tenant puntual en el catálogo
// para provisión lazy. Los ids desconocidos se recuerdan en el cache negativo.
func (p *Provisioner) Resolve(ctx context.Context, id tenantsql.TenantID) (tenantsql.Source, error) {
	// el default solo se registra vía InitializeDefault; resolverlo acá se
	// bloquearía esperando su propio pool a través del catálogo
	if id == tenantsql.DefaultTenantID {
		return tenantsql.Source{}, fmt.Errorf("%w: default tenant is not resolvable", tenantsql.ErrNotFound)
	}
	if p.State() == Unstarted {
		return tenantsql.Source{}, ErrNotReady
	}
	if p.catalog == nil {
		return tenantsql.Source{}, fmt.Errorf("%w: no catalog configured", tenantsql.ErrNotFound)
	}
	gone, err := p.deprovisioned(ctx, id)
	if err != nil {
		return tenantsql.Source{}, err
	}
	if gone {
		return tenantsql.Source{}, fmt.Errorf("%w: %s (deprovisioned)", tenantsql.ErrNotFound, id)
	}

	key := negKey(id)
	if p.neg != nil {
		if ok, err := p.neg.Exists(ctx, key); err == nil && ok {
			return tenantsql.Source{}, fmt.Errorf("%w: %s (cached)", tenantsql.ErrNotFound, id)
		}
	}

	row, err := p.catalog.Get(ctx, id)
	if err != nil {
		if tenantsql.IsNotFound(err) && p.neg != nil {
			if cerr := p.neg.Set(ctx, key, "1", p.negTTL); cerr != nil {
				logger.From(ctx).Debug("negative cache set", logger.Err(cerr))
			}
		}
		return tenantsql.Source{}, err
	}
	if row.Err != nil {
		return tenantsql.Source{}, fmt.Errorf("%w: tenant %s: %w", tenantsql.ErrInvalidSource, id, row.Err)
	}
	logger.From(ctx).Info("tenant resolved lazily",
		logger.Component("provisioner"),
		logger.TenantID(id.String()))
	return row.Source, nil
}

// Deprovision quita el tenant del registry y lo marca como dado de baja: ni la
// provisión lazy ni discovery lo vuelven a registrar hasta Restore, aunque su
// fila siga activa en el catálogo.
func (p *Provisioner) Deprovision(ctx context.Context, id tenantsql.TenantID) error {
	if id == tenantsql.DefaultTenantID {
		return tenantsql.ErrDefaultTenant
	}
	if _, err := p.reg.Lookup(id); err != nil {
		return err
	}
	// la marca va primero: una referencia concurrente no debe re-provisionarlo
	if err := p.tombs.Set(ctx, tombKey(id), time.Now().UTC().Format(time.RFC3339), 0); err != nil {
		return fmt.Errorf("deprovision %s: %w", id, err)
	}
	if err := p.reg.Deregister(ctx, id); err != nil && !tenantsql.IsNotFound(err) {
		return err
	}
	logger.From(ctx).Info("tenant deprovisioned",
		logger.Component("provisioner"),
		logger.TenantID(id.String()))
	return nil
}

// Restore levanta la baja de Deprovision. El tenant vuelve a registrarse en la
// próxima referencia o corrida de discovery. Retorna false si no estaba dado de baja.
func (p *Provisioner) Restore(ctx context.Context, id tenantsql.TenantID) (bool, error) {
	gone, err := p.deprovisioned(ctx, id)
	if err != nil || !gone {
		return false, err
	}
	if err := p.tombs.Delete(ctx, tombKey(id)); err != nil {
		return false, fmt.Errorf("restore %s: %w", id, err)
	}
	p.forget(ctx, id)
	return true, nil
}

func (p *Provisioner) deprovisioned(ctx context.Context, id tenantsql.TenantID) (bool, error) {
	ok, err := p.tombs.Exists(ctx, tombKey(id))
	if err != nil {
		return false, fmt.Errorf("tenant %s: tombstone lookup: %w", id, err)
	}
	return ok, nil
}

// Forget borra un id del cache negativo (ej: recién dado de alta en el catálogo).
func (p *Provisioner) Forget(ctx context.Context, id tenantsql.TenantID) { p.forget(ctx, id) }

func (p *Provisioner) forget(ctx context.Context, id tenantsql.TenantID) {
	if p.neg == nil {
		return
	}
	if err := p.neg.Delete(ctx, negKey(id)); err != nil {
		logger.From(ctx).Debug("negative cache delete", logger.Err(err))
	}
}

func (p *Provisioner) notify(result string) {
	if p.onDiscover != nil {
		p.onDiscover(result)
	}
}

func tombKey(id tenantsql.TenantID) string {
	return "tenant:deprovisioned:" + strings.TrimSpace(id.String())
}

func negKey(id tenantsql.TenantID) string {
	return "tenant:unknown:" + strings.TrimSpace(id.String())
}
