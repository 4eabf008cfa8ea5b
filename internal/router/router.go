// Package router elige la conexión física según el tenant de la unidad de trabajo.
package router

import (
	"context"
	"errors"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/tenantctx"
)

// Router resuelve tenant → pool → conexión.
type Router struct {
	reg       *tenantsql.Registry
	defaultID tenantsql.TenantID
}

// Option configura el Router.
type Option func(*Router)

// WithDefaultTenant cambia el tenant usado cuando la unidad de trabajo no tiene uno.
func WithDefaultTenant(id tenantsql.TenantID) Option {
	return func(r *Router) {
		if id.Valid() {
			r.defaultID = id
		}
	}
}

// New crea un Router sobre el registry.
func New(reg *tenantsql.Registry, opts ...Option) *Router {
	r := &Router{reg: reg, defaultID: tenantsql.DefaultTenantID}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Registry expone el registry subyacente.
func (r *Router) Registry() *tenantsql.Registry { return r.reg }

// Resolve retorna el tenant efectivo de ctx (el default si no hay uno asociado).
func (r *Router) Resolve(ctx context.Context) tenantsql.TenantID {
	if id, ok := tenantctx.Current(ctx); ok {
		return id
	}
	return r.defaultID
}

// Acquire obtiene una conexión del pool del tenant actual.
func (r *Router) Acquire(ctx context.Context) (*tenantsql.Conn, error) {
	return r.AcquireFor(ctx, r.Resolve(ctx))
}

// AcquireFor obtiene una conexión del pool de id, ignorando el binding de ctx.
func (r *Router) AcquireFor(ctx context.Context, id tenantsql.TenantID) (*tenantsql.Conn, error) {
	pool, err := r.reg.GetOrCreatePool(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Debug("conn acquired",
		logger.TenantID(id.String()),
		logger.ConnID(c.ID()))
	return c, nil
}

// Release devuelve la conexión a su pool. Una doble devolución retorna
// tenantsql.ErrRelease; el pool ya la registra en el log.
func (r *Router) Release(c *tenantsql.Conn) error {
	if c == nil {
		return tenantsql.ErrRelease
	}
	return c.Release()
}

// WithConn obtiene una conexión, ejecuta fn y la devuelve siempre.
func (r *Router) WithConn(ctx context.Context, fn func(ctx context.Context, c *tenantsql.Conn) error) (err error) {
	c, err := r.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := r.Release(c); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn(ctx, c)
}
