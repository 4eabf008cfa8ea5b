// Package audit registra eventos administrativos sobre el registry de tenants
// (quién, qué, sobre qué tenant) en un logger dedicado.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
)

const (
	EventTenantDeregistered = "tenant.deregistered"
	EventTenantRestored     = "tenant.restored"
	EventDiscoveryRun       = "tenant.discovery"
	EventDiscoveryQueued    = "tenant.discovery_queued"
)

// Log escribe un evento de auditoría. actor es el subject del token admin.
func Log(ctx context.Context, event, actor string, fields ...zap.Field) {
	l := logger.From(ctx).Named("audit")
	l.Info(event, append([]zap.Field{
		zap.String("event", event),
		zap.String("actor", actor),
	}, fields...)...)
}
