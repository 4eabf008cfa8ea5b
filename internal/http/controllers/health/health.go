// Package health expone /healthz (liveness) y /readyz (readiness).
package health

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/tenantdb/internal/http/errors"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	"github.com/dropDatabas3/tenantdb/internal/provisioner"
)

// StateSource lo implementa provisioner.Provisioner.
type StateSource interface {
	State() provisioner.State
}

// Pinger hace un round-trip contra la base de un tenant.
type Pinger func(ctx context.Context, id tenantsql.TenantID) error

type Controller struct {
	state   StateSource
	ping    Pinger
	timeout time.Duration
}

func NewController(state StateSource, ping Pinger) *Controller {
	return &Controller{state: state, ping: ping, timeout: 2 * time.Second}
}

// Healthz siempre 200 mientras el proceso responde.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz 200 cuando el tenant default está inicializado y responde.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	st := c.state.State()
	if st == provisioner.Unstarted {
		httperrors.WriteError(w, httperrors.ErrNotReady.WithDetail("default tenant not initialized"))
		return
	}
	if c.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()
		if err := c.ping(ctx, tenantsql.DefaultTenantID); err != nil {
			logger.From(r.Context()).Warn("readiness ping failed", logger.Op("Readyz"), logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrNotReady.WithCause(err).WithDetail("default tenant unreachable"))
			return
		}
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready", "state": st.String()})
}
