package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cosmic-coffee/internal/logger"
)

// Run serves srv until ctx is done, then shuts it down within drain.
func Run(ctx context.Context, srv *http.Server, drain time.Duration, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server_started", fmt.Sprintf("Listening on %s", srv.Addr), "startup", map[string]interface{}{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("graceful_shutdown", "Draining HTTP server", "shutdown", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
