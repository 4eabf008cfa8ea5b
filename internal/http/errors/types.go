package errors

import (
	"fmt"
	"net/http"
)

// StatusClientClosedRequest no existe en net/http (convención nginx).
const StatusClientClosedRequest = 499

// AppError estructura estándar de error de la API.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail devuelve una COPIA con detalle.
func (e *AppError) WithDetail(detail string) *AppError {
	n := *e
	n.Detail = detail
	return &n
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	n := *e
	n.Err = err
	return &n
}

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene parámetros inválidos o faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Se requiere un token admin válido.",
		HTTPStatus: http.StatusUnauthorized,
	}
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no existe.",
		HTTPStatus: http.StatusNotFound,
	}
	ErrTenantNotFound = &AppError{
		Code:       "TENANT_NOT_FOUND",
		Message:    "El tenant no está registrado ni figura en el catálogo.",
		HTTPStatus: http.StatusNotFound,
	}
	ErrConflict = &AppError{
		Code:       "TENANT_CONFLICT",
		Message:    "El tenant ya está registrado con otra fuente.",
		HTTPStatus: http.StatusConflict,
	}
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "La operación no está permitida.",
		HTTPStatus: http.StatusForbidden,
	}
	ErrClientClosed = &AppError{
		Code:       "CLIENT_CLOSED_REQUEST",
		Message:    "La solicitud fue cancelada por el cliente.",
		HTTPStatus: StatusClientClosedRequest,
	}
	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Demasiadas solicitudes, reintentar más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
	ErrPoolExhausted = &AppError{
		Code:       "POOL_EXHAUSTED",
		Message:    "No hay conexiones disponibles para el tenant.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
	ErrNotReady = &AppError{
		Code:       "NOT_READY",
		Message:    "El servicio todavía no está listo.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
	ErrUpstreamTimeout = &AppError{
		Code:       "UPSTREAM_TIMEOUT",
		Message:    "La base del tenant no respondió a tiempo.",
		HTTPStatus: http.StatusGatewayTimeout,
	}
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error inesperado.",
		HTTPStatus: http.StatusInternalServerError,
	}
)
