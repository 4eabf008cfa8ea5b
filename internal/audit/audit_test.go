package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
)

func TestLogUsesContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	Log(ctx, EventTenantDeregistered, "ops", logger.TenantID("42"))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "audit", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	require.Equal(t, EventTenantDeregistered, fields["event"])
	require.Equal(t, "ops", fields["actor"])
	require.Equal(t, "42", fields["tenant_id"])
}
