package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"opsdemo/internal/api"
	"opsdemo/internal/crm"
	"opsdemo/internal/logger"
	"opsdemo/internal/models"
	"opsdemo/internal/observability"
	"opsdemo/internal/ratelimit"
	"opsdemo/internal/storage"
	"opsdemo/internal/version"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Start the API server and, when metrics are enabled, the Prometheus
metrics server on its own port. SIGINT or SIGTERM triggers a graceful shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info := version.GetInfo()
	log, closer, err := logger.Setup(cfg.Logging, info)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, log, info); err != nil {
		log.Error("Server exited with error", "error", err)
		return err
	}
	return nil
}

// serve wires the components and blocks until ctx is cancelled or a
// listener fails.
func serve(ctx context.Context, cfg *models.Config, log *slog.Logger, info version.Info) error {
	otelProvider, err := observability.Setup(ctx, cfg.Metrics, cfg.Observability, info)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown observability", "error", err)
		}
	}()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	var activeStorage storage.Storage = store
	if otelProvider.MetricsEnabled() || otelProvider.TracingEnabled() {
		instrumented, err := observability.NewInstrumentedStorage(store)
		if err != nil {
			return fmt.Errorf("failed to create instrumented storage: %w", err)
		}
		activeStorage = instrumented
	}

	crmService := newCRMService(cfg, log)
	var status crm.StatusProvider = crmService
	if otelProvider.MetricsEnabled() || otelProvider.TracingEnabled() {
		instrumented, err := observability.NewInstrumentedStatus(crmService)
		if err != nil {
			return fmt.Errorf("failed to create instrumented status: %w", err)
		}
		status = instrumented
	}

	handlers := api.NewHandlers(activeStorage, status,
		api.WithVersion(info),
		api.WithCRMPhase(crmService.Phase),
		api.WithLogger(log),
	)

	routeOpts := []api.RouteOption{}
	if otelProvider.TracingEnabled() {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	if otelProvider.MetricsEnabled() {
		routeOpts = append(routeOpts, api.WithRequestMetrics(otel.GetMeterProvider()))
	}
	if cfg.Security.RateLimit.Enabled {
		limiter := ratelimit.NewFromConfig(cfg.Security.RateLimit)
		defer limiter.Close()
		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(limiter, log)))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	var metricsServer *observability.MetricsServer
	if otelProvider.MetricsEnabled() {
		metricsServer = observability.NewMetricsServer(cfg.Server.Host, cfg.Metrics.Port, cfg.Metrics.Path, otelProvider, log)
		go func() {
			if err := metricsServer.Start(); err != nil {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	go func() {
		log.Info("Starting server",
			"addr", server.Addr,
			"tls", cfg.Server.TLSEnabled,
			"version", info.Version,
		)

		var err error
		if cfg.Server.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down server")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Metrics server forced to shutdown", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server shutdown complete")
	return runErr
}
