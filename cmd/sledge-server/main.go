package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/sledge/internal/adapters/datastore"
	"github.com/SscSPs/sledge/internal/adapters/prices"
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/core/services"
	"github.com/SscSPs/sledge/internal/handlers"
	"github.com/SscSPs/sledge/internal/middleware"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/SscSPs/sledge/internal/platform/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize structured logger
	logger := logging.New(os.Stdout, slog.LevelInfo)
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Server == nil {
		return errors.New("no server section configured")
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx := logging.WithLogger(sigCtx, logger)

	store, err := datastore.GetCurrentDatastore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := datastore.Disconnect(context.Background(), store); err != nil {
			logger.Error("Failed to disconnect store", slog.String("error", err.Error()))
		}
	}()
	logger.Info("Store connected", slog.String("scheme", store.Scheme()), slog.String("address", store.Address()))

	container, err := newContainer(store, cfg.Server)
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery(), middleware.CORS(cfg.Server.CORSOrigins))
	if err := r.SetTrustedProxies(nil); err != nil {
		return err
	}
	if err := handlers.RegisterRoutes(r, cfg.Server, container); err != nil {
		return err
	}

	return serve(sigCtx, logger, r, cfg.Server.Bindings)
}

// newContainer wires the services; the exchange service needs a prices file.
func newContainer(store repositories.DataStore, cfg *config.ServerConfig) (*portssvc.ServiceContainer, error) {
	if cfg.PricesFile == "" {
		return services.NewContainer(store, nil, nil), nil
	}
	table, err := prices.LoadFile(cfg.PricesFile)
	if err != nil {
		return nil, err
	}
	return services.NewContainer(store, table, table), nil
}

// serve listens on every binding until ctx is done or one listener fails, then shuts all of them
// down.
func serve(ctx context.Context, logger *slog.Logger, handler http.Handler, bindings []config.Binding) error {
	servers := make([]*http.Server, 0, len(bindings))
	errCh := make(chan error, len(bindings))
	for _, b := range bindings {
		srv := &http.Server{
			Addr:              b.Address(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, srv)
		go func(b config.Binding) {
			logger.Info("Server starting", slog.String("address", b.Address()), slog.Bool("tls", b.TLS != nil))
			if b.TLS != nil {
				errCh <- srv.ListenAndServeTLS(b.TLS.CertFile, b.TLS.KeyFile)
				return
			}
			errCh <- srv.ListenAndServe()
		}(b)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down listener", slog.String("address", srv.Addr), slog.String("error", err.Error()))
		}
	}
	return serveErr
}
