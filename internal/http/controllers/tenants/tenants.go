// Package tenants contiene los handlers admin sobre el registry de tenants.
package tenants

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tenantdb/internal/audit"
	httperrors "github.com/dropDatabas3/tenantdb/internal/http/errors"
	mw "github.com/dropDatabas3/tenantdb/internal/http/middlewares"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/provisioner"
)

// Discoverer lo implementa provisioner.Provisioner.
type Discoverer interface {
	DiscoverAndRegister(ctx context.Context) (provisioner.Report, error)
}

// Lifecycle lo implementa provisioner.Provisioner: baja persistente de un
// tenant (no vuelve por lazy ni por discovery) y su reversión.
type Lifecycle interface {
	Deprovision(ctx context.Context, id tenantsql.TenantID) error
	Restore(ctx context.Context, id tenantsql.TenantID) (bool, error)
}

// Deps del controller. Trigger es opcional (discovery.Service.Trigger) y
// habilita ?async=true en POST /discover. Sin Lifecycle, DELETE solo
// desregistra: el tenant vuelve en la próxima referencia (reset del pool).
type Deps struct {
	Registry   *tenantsql.Registry
	Discoverer Discoverer
	Lifecycle  Lifecycle
	Trigger    func() bool
}

type Controller struct{ d Deps }

func NewController(d Deps) *Controller { return &Controller{d: d} }

// TenantDTO vista admin de un tenant registrado. Nunca incluye el password.
type TenantDTO struct {
	ID           string      `json:"id"`
	Driver       string      `json:"driver"`
	Source       string      `json:"source"`
	RegisteredAt time.Time   `json:"registered_at"`
	Pool         PoolStatDTO `json:"pool"`
}

type PoolStatDTO struct {
	Acquired  int   `json:"acquired"`
	Idle      int   `json:"idle"`
	Total     int   `json:"total"`
	Max       int   `json:"max"`
	Waits     int64 `json:"waits"`
	Exhausted int64 `json:"exhausted"`
}

func toDTO(e tenantsql.Entry) TenantDTO {
	st := e.Pool.Stat()
	return TenantDTO{
		ID:           e.ID.String(),
		Driver:       e.Source.Driver,
		Source:       e.Source.Redacted(),
		RegisteredAt: e.RegisteredAt,
		Pool: PoolStatDTO{
			Acquired: st.Acquired, Idle: st.Idle, Total: st.Total, Max: st.Max,
			Waits: st.Waits, Exhausted: st.Exhausted,
		},
	}
}

// List GET /admin/tenants
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ids := c.d.Registry.IDs()
	out := make([]TenantDTO, 0, len(ids))
	for _, id := range ids {
		e, err := c.d.Registry.Lookup(id)
		if err != nil {
			continue // deregistrado entre IDs() y Lookup()
		}
		out = append(out, toDTO(e))
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]any{"tenants": out, "count": len(out)})
}

// Get GET /admin/tenants/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	e, err := c.d.Registry.Lookup(tenantsql.TenantID(chi.URLParam(r, "id")))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, toDTO(e))
}

// Delete DELETE /admin/tenants/{id}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	id := tenantsql.TenantID(chi.URLParam(r, "id"))
	var err error
	if c.d.Lifecycle != nil {
		err = c.d.Lifecycle.Deprovision(r.Context(), id)
	} else {
		err = c.d.Registry.Deregister(r.Context(), id)
	}
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	audit.Log(r.Context(), audit.EventTenantDeregistered, actor(r),
		logger.TenantID(id.String()), logger.Any("persistent", c.d.Lifecycle != nil))
	w.WriteHeader(http.StatusNoContent)
}

// Restore POST /admin/tenants/{id}/restore
func (c *Controller) Restore(w http.ResponseWriter, r *http.Request) {
	if c.d.Lifecycle == nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	id := tenantsql.TenantID(chi.URLParam(r, "id"))
	ok, err := c.d.Lifecycle.Restore(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("tenant is not deprovisioned"))
		return
	}
	audit.Log(r.Context(), audit.EventTenantRestored, actor(r), logger.TenantID(id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// IssueDTO fila no registrada.
type IssueDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ReportDTO resultado de una corrida.
type ReportDTO struct {
	Result     string     `json:"result"`
	Added      []string   `json:"added"`
	Unchanged  []string   `json:"unchanged"`
	Skipped    []string   `json:"skipped"`
	Conflicts  []IssueDTO `json:"conflicts"`
	Invalid    []IssueDTO `json:"invalid"`
	DurationMs int64      `json:"duration_ms"`
}

func ids(in []tenantsql.TenantID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = id.String()
	}
	return out
}

func issues(in []provisioner.Issue) []IssueDTO {
	out := make([]IssueDTO, len(in))
	for i, is := range in {
		out[i] = IssueDTO{ID: is.ID.String(), Error: is.Err.Error()}
	}
	return out
}

func reportDTO(rep provisioner.Report) ReportDTO {
	return ReportDTO{
		Result:     rep.Result(),
		Added:      ids(rep.Added),
		Unchanged:  ids(rep.Unchanged),
		Skipped:    ids(rep.Skipped),
		Conflicts:  issues(rep.Conflicts),
		Invalid:    issues(rep.Invalid),
		DurationMs: rep.Duration.Milliseconds(),
	}
}

// Discover POST /admin/tenants/discover[?async=true]
// Conflictos o filas inválidas no son un error HTTP: se informan en el body.
func (c *Controller) Discover(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("async") == "true" && c.d.Trigger != nil {
		queued := c.d.Trigger()
		audit.Log(r.Context(), audit.EventDiscoveryQueued, actor(r))
		httperrors.WriteJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
		return
	}
	rep, err := c.d.Discoverer.DiscoverAndRegister(r.Context())
	if err != nil && rep.Result() == "ok" {
		// el error no viene de filas puntuales: falló el catálogo o el estado
		httperrors.WriteError(w, err)
		return
	}
	audit.Log(r.Context(), audit.EventDiscoveryRun, actor(r),
		logger.String("result", rep.Result()), logger.String("summary", rep.String()))
	httperrors.WriteJSON(w, http.StatusOK, reportDTO(rep))
}

func actor(r *http.Request) string {
	if cl := mw.GetAdminClaims(r.Context()); cl != nil {
		return cl.Subject
	}
	return ""
}
