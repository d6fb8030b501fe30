package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wikimesh/ssohub/config"
	httpx "github.com/wikimesh/ssohub/internal/http"
)

// StartHTTPServer builds the router and starts serving in the background.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *config.AppConfig, services *Services, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Autologin:   services.Autologin,
		Login:       services.Login,
		Metrics:     services.Metrics,
		IconPath:    cfg.SSO.IconPath,
		Secure:      cfg.HTTP.Scheme == "https",
		RememberTTL: cfg.SSO.RememberTTL,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()
	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server and flushes the
// metrics client.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, services *Services, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if services != nil && services.Metrics != nil {
		if err := services.Metrics.Close(); err != nil && logger != nil {
			logger.Warn("close statsd client failed", "error", err)
		}
	}
	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
