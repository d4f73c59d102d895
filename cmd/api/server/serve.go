package server

import (
	"context"
	"errors"
	"net/http"
)

// Serve listens on app.Config.Server.Addr until ctx is done, then shuts down within
// the configured shutdown timeout.
func Serve(ctx context.Context, app *App) error {
	srv := &http.Server{Addr: app.Config.Server.Addr, Handler: NewRouter(app)}
	errc := make(chan error, 1)
	go func() {
		app.Logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
