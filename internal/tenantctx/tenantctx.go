// Package tenantctx lleva el tenant de la unidad de trabajo actual dentro de un
// context.Context.
//
// Cada unidad de trabajo (request, job) abre su propio Binding con Begin; un
// worker reutilizado recibe un contexto nuevo por job y nunca ve el tenant del
// job anterior.
package tenantctx

import (
	"context"
	"strings"
	"sync"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
)

type bindingKey struct{}

// Binding es el slot mutable de tenant de una unidad de trabajo.
type Binding struct {
	mu  sync.RWMutex
	id  tenantsql.TenantID
	set bool
}

// Set asocia el tenant. Un id vacío equivale a Clear.
func (b *Binding) Set(id tenantsql.TenantID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(string(id)) == "" {
		b.id, b.set = "", false
		return
	}
	b.id, b.set = id, true
}

// Current retorna el tenant asociado, si lo hay.
func (b *Binding) Current() (tenantsql.TenantID, bool) {
	if b == nil {
		return "", false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id, b.set
}

// Clear desasocia el tenant.
func (b *Binding) Clear() {
	b.mu.Lock()
	b.id, b.set = "", false
	b.mu.Unlock()
}

// Begin abre una unidad de trabajo con un Binding vacío.
func Begin(ctx context.Context) (context.Context, *Binding) {
	b := &Binding{}
	return context.WithValue(ctx, bindingKey{}, b), b
}

// FromContext retorna el Binding de ctx (nil si no hay unidad de trabajo).
func FromContext(ctx context.Context) *Binding {
	if ctx == nil {
		return nil
	}
	b, _ := ctx.Value(bindingKey{}).(*Binding)
	return b
}

// Current retorna el tenant asociado a la unidad de trabajo de ctx.
func Current(ctx context.Context) (tenantsql.TenantID, bool) {
	return FromContext(ctx).Current()
}

// WithTenant abre una unidad de trabajo ya asociada a id.
func WithTenant(ctx context.Context, id tenantsql.TenantID) context.Context {
	ctx, b := Begin(ctx)
	b.Set(id)
	return ctx
}

// Run ejecuta fn dentro de una unidad de trabajo asociada a id. El binding se
// limpia al salir, también ante error, panic o cancelación.
func Run(ctx context.Context, id tenantsql.TenantID, fn func(ctx context.Context) error) error {
	ctx, b := Begin(ctx)
	b.Set(id)
	defer b.Clear()
	return fn(ctx)
}
