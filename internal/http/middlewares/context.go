package middlewares

import (
	"context"

	ajwt "github.com/dropDatabas3/tenantdb/internal/jwt"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAdminClaims
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRequestID, rid)
}

// GetRequestID retorna el request id del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

func setAdminClaims(ctx context.Context, c *ajwt.AdminClaims) context.Context {
	return context.WithValue(ctx, ctxAdminClaims, c)
}

// GetAdminClaims claims del token admin validado (nil fuera de rutas admin).
func GetAdminClaims(ctx context.Context) *ajwt.AdminClaims {
	c, _ := ctx.Value(ctxAdminClaims).(*ajwt.AdminClaims)
	return c
}
