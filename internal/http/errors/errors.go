// Package errors traduce la taxonomía de errores del routing de tenants a
// respuestas HTTP JSON {code,message,detail}.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
	"github.com/dropDatabas3/tenantdb/internal/provisioner"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// FromError convierte cualquier error en *AppError.
// El orden importa: transitorios antes que "no encontrado" (ErrProvisioning
// envuelve ErrNotFound).
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	switch {
	case tenantsql.IsConflict(err):
		return ErrConflict.WithCause(err).WithDetail(err.Error())
	case tenantsql.IsPoolExhausted(err):
		return ErrPoolExhausted.WithCause(err)
	case tenantsql.IsCancelled(err):
		return ErrClientClosed.WithCause(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout.WithCause(err)
	case tenantsql.IsProvisioning(err), tenantsql.IsNotFound(err):
		return ErrTenantNotFound.WithCause(err).WithDetail(err.Error())
	case stderrors.Is(err, tenantsql.ErrDefaultTenant):
		return ErrForbidden.WithCause(err).WithDetail(err.Error())
	case stderrors.Is(err, tenantsql.ErrInvalidSource):
		return ErrBadRequest.WithCause(err).WithDetail(err.Error())
	case stderrors.Is(err, provisioner.ErrNotReady), stderrors.Is(err, tenantsql.ErrPoolClosed):
		return ErrNotReady.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe la respuesta para err.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// WriteJSON respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
