package tenantsql

import "errors"

// Errores del routing de conexiones por tenant.
var (
	// ErrConflict: el id ya está registrado con una fuente distinta. No reintentable.
	ErrConflict = errors.New("tenant already registered with a different source")

	// ErrNotFound: el tenant no está registrado.
	ErrNotFound = errors.New("tenant not found")

	// ErrProvisioning: no se pudo obtener una fuente para un tenant desconocido.
	// Reintentable una vez que el tenant se provisione.
	ErrProvisioning = errors.New("tenant provisioning failed")

	// ErrPoolExhausted: venció el timeout esperando una conexión libre. Transitorio.
	ErrPoolExhausted = errors.New("tenant pool exhausted")

	// ErrRelease: la conexión ya había sido devuelta (bug del caller).
	ErrRelease = errors.New("connection already released")

	// ErrCancelled: el caller canceló mientras esperaba una conexión.
	ErrCancelled = errors.New("connection acquire cancelled")

	// ErrPoolClosed: el pool fue cerrado (deprovision o shutdown).
	ErrPoolClosed = errors.New("tenant pool closed")

	// ErrDefaultTenant: el tenant default no se puede desregistrar.
	ErrDefaultTenant = errors.New("default tenant cannot be removed")

	// ErrInvalidSource: la fuente de conexión no pasa validación.
	ErrInvalidSource = errors.New("invalid connection source")
)

func IsConflict(err error) bool      { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsProvisioning(err error) bool  { return errors.Is(err, ErrProvisioning) }
func IsPoolExhausted(err error) bool { return errors.Is(err, ErrPoolExhausted) }
func IsRelease(err error) bool       { return errors.Is(err, ErrRelease) }
func IsCancelled(err error) bool     { return errors.Is(err, ErrCancelled) }
