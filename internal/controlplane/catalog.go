// Package controlplane define el catálogo de tenants: la fuente de verdad de
// qué tenants existen y cómo conectarse a cada base.
//
// Implementaciones:
//   - controlplane/sql: tabla en la base del tenant default (producción).
//   - controlplane/fs: YAML en disco (desarrollo).
//   - Static: lista fija en memoria (tests, catalog.kind=none).
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
)

var (
	// ErrTenantNotFound envuelve tenantsql.ErrNotFound para que el registry lo reconozca.
	ErrTenantNotFound = fmt.Errorf("catalog: %w", tenantsql.ErrNotFound)
	// ErrBadInput fila o entrada inválida.
	ErrBadInput = errors.New("catalog: bad input")
)

// Row es una fila del catálogo.
type Row struct {
	ID     tenantsql.TenantID
	Name   string
	Source tenantsql.Source
	// Err != nil: la fila existe pero no se pudo decodificar (ej: password
	// cifrado con otra clave). No se registra.
	Err error
}

// Catalog lista tenants y sus fuentes de conexión.
type Catalog interface {
	// List retorna las filas activas ordenadas por id.
	List(ctx context.Context) ([]Row, error)
	// Get retorna la fila de un tenant o ErrTenantNotFound.
	Get(ctx context.Context, id tenantsql.TenantID) (Row, error)
}

// Writer es implementado por catálogos editables.
type Writer interface {
	Put(ctx context.Context, row Row) error
	Delete(ctx context.Context, id tenantsql.TenantID) error
}

// Static es un catálogo en memoria.
type Static struct {
	mu   sync.RWMutex
	rows map[tenantsql.TenantID]Row
}

// NewStatic crea un catálogo en memoria con las filas dadas.
func NewStatic(rows ...Row) *Static {
	s := &Static{rows: make(map[tenantsql.TenantID]Row, len(rows))}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *Static) List(ctx context.Context) ([]Row, error) {
	s.mu.RLock()
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	s.mu.RUnlock()
	SortRows(out)
	return out, nil
}

func (s *Static) Get(ctx context.Context, id tenantsql.TenantID) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return Row{}, fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	return r, nil
}

func (s *Static) Put(ctx context.Context, row Row) error {
	if !row.ID.Valid() {
		return fmt.Errorf("%w: tenant id required", ErrBadInput)
	}
	s.mu.Lock()
	s.rows[row.ID] = row
	s.mu.Unlock()
	return nil
}

func (s *Static) Delete(ctx context.Context, id tenantsql.TenantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTenantNotFound, id)
	}
	delete(s.rows, id)
	return nil
}

// SortRows ordena por id (orden estable para reportes).
func SortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
}
