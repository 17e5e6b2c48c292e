package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/di"
	"github.com/hanko-field/storefront/internal/handlers"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/platform/idempotency"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/platform/secrets"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger, err := observability.NewLogger("info")
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(bootLogger.Named("secrets")),
		secrets.WithProject(os.Getenv("STOREFRONT_FIREBASE_PROJECT_ID")),
	)
	if err != nil {
		return fmt.Errorf("initialise secret fetcher: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			bootLogger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			bootLogger.Error("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.Named("api")

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}

	replay := idempotency.Middleware(
		container.Idempotency,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	catalogHandlers := handlers.NewCatalogHandlers(container.Authenticator, container.Services.Catalog,
		handlers.WithMaxBulkItems(cfg.Catalog.MaxBulkItems),
		handlers.WithCatalogMutationMiddleware(replay),
	)
	offerHandlers := handlers.NewOfferHandlers(container.Authenticator, container.Services.Offers,
		handlers.WithOfferMutationMiddleware(replay),
		handlers.WithPublicRateLimit(cfg.Offers.PublicRatePerMinute, cfg.Offers.PublicBurst),
	)
	cartHandlers := handlers.NewCartHandlers(container.Authenticator, container.Services.Cart)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.Trace(cfg.Firebase.ProjectID),
			observability.InjectLogger(logger.Named("http")),
			observability.RequestLogger(),
			observability.Recovery(),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(handlers.WithReadinessProbe(container.Readiness))),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithOfferRoutes(offerHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
	)

	server := &http.Server{
		Addr:         net.JoinHostPort("", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("environment", cfg.Security.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = container.Close(context.Background())
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}
