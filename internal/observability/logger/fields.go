package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ─── Tenancy / pools ───

// TenantID crea un campo para el identificador del tenant.
func TenantID(v string) zap.Field { return zap.String("tenant_id", v) }

// ConnID identifica una conexión física de un pool.
func ConnID(v string) zap.Field { return zap.String("conn_id", v) }

func Driver(v string) zap.Field { return zap.String("driver", v) }

// Source loguea una fuente de conexión ya redactada (sin password).
func Source(v string) zap.Field { return zap.String("source", v) }

func PoolMax(v int) zap.Field { return zap.Int("pool_max", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }
func String(k, v string) zap.Field { return zap.String(k, v) }
func Any(k string, v any) zap.Field {
	return zap.Any(k, v)
}
