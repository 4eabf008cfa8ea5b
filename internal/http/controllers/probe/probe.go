// Package probe expone un endpoint tenant-scoped que recorre el camino
// completo: binding -> router -> pool -> base del tenant.
package probe

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/tenantdb/internal/http/errors"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/router"
)

type Controller struct {
	router *router.Router
}

func NewController(rt *router.Router) *Controller { return &Controller{router: rt} }

// Ping GET /v1/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	var (
		tenant string
		connID string
		driver string
	)
	start := time.Now()
	err := c.router.WithConn(r.Context(), func(ctx context.Context, conn *tenantsql.Conn) error {
		tenant, connID, driver = conn.Tenant().String(), conn.ID(), conn.Driver()
		if err := conn.Ping(ctx); err != nil {
			conn.MarkBroken()
			return err
		}
		return nil
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, map[string]any{
		"tenant":     tenant,
		"conn_id":    connID,
		"driver":     driver,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}
