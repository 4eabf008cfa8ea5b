// Package http levanta el servidor HTTP con shutdown ordenado.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
)

// Serve atiende en addr hasta que ctx se cancela; luego drena requests en
// vuelo por hasta shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("http server listening", logger.Component("http"), logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.L().Info("http server shutting down", logger.Component("http"))
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return nil
}
