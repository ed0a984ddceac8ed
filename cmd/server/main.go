package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"decentrakyc/internal/auth"
	authhandler "decentrakyc/internal/auth/handler"
	demohandler "decentrakyc/internal/demo/handler"
	demometrics "decentrakyc/internal/demo/metrics"
	"decentrakyc/internal/demo/service"
	"decentrakyc/internal/guard"
	"decentrakyc/internal/platform/config"
	"decentrakyc/internal/platform/httpserver"
	"decentrakyc/internal/platform/logger"
	"decentrakyc/internal/platform/metrics"
	"decentrakyc/internal/platform/otel"
	"decentrakyc/internal/platform/ratelimit"
	httptransport "decentrakyc/internal/transport/http"
)

const tokenIssuer = "decentrakyc"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "decentrakyc: %v\n", err)
		os.Exit(1)
	}
}

// run wires high-level dependencies, exposes the HTTP router, and blocks until
// a shutdown signal. Business logic lives in the internal service packages.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	be, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			log.Warn("failed to close demo store", "error", err)
		}
	}()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	demoMetrics := demometrics.New(prometheus.DefaultRegisterer)
	registryOpts := []service.RegistryOption{
		service.WithRegistryLogger(log),
		service.WithRegistryMetrics(demoMetrics),
		service.WithIdleTTL(cfg.DemoSessionTTL),
		service.WithMaxProfiles(cfg.DemoMaxSessions),
	}
	if cfg.ClearsEvictedRecords() {
		registryOpts = append(registryOpts, service.WithEvictHook(be.store.Clear))
	}
	registry := service.NewRegistry(func(profile string) *service.Provider {
		return service.NewProvider(profile, be.store,
			service.WithLogger(log),
			service.WithNotifier(notifier),
			service.WithMetrics(demoMetrics),
		)
	}, registryOpts...)

	if cfg.UsesDefaultSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY")
	}
	authService := auth.NewService(
		auth.NewInMemoryUserStore(),
		auth.NewTokenService(cfg.JWTSigningKey, tokenIssuer, auth.SessionTTL),
		auth.WithLogger(log),
		auth.WithAutoConfirm(cfg.AutoConfirm),
	)
	if err := authService.Start(ctx); err != nil {
		return fmt.Errorf("start auth service: %w", err)
	}

	var authOpts []authhandler.Option
	if cfg.AuthRateLimit > 0 {
		limiter := ratelimit.NewSlidingWindow(cfg.AuthRateLimit, cfg.AuthRateWindow)
		authOpts = append(authOpts, authhandler.WithRateLimit(ratelimit.ByClientIP(limiter, log)))
	}
	authH := authhandler.New(authService, registry, notifier, log, cfg.SecureCookies, authOpts...)
	demoH := demohandler.New(registry, guard.New(authService, registry, log), authH.HandleSignOut, notifier, log, cfg.AdminToken)

	routerCfg := httptransport.Config{
		Logger:         log,
		Handlers:       []httptransport.Registrar{authH, demoH},
		Metrics:        metrics.New(prometheus.DefaultRegisterer),
		Gatherer:       prometheus.DefaultGatherer,
		AllowedOrigins: cfg.AllowedOrigins,
		ProfileCookie:  cfg.ProfileCookie,
		SecureCookies:  cfg.SecureCookies,
	}
	if be.ping != nil {
		routerCfg.Checks = map[string]httptransport.Check{"store": be.ping}
	}
	if cfg.DemoMode {
		routerCfg.Demo = registry
	}
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(routerCfg), httpserver.WithLogger(log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting decentrakyc",
			"addr", cfg.Addr,
			"store", cfg.StoreBackend,
			"demo_mode", cfg.DemoMode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sweepIdleSessions(gctx, registry, cfg.DemoSessionTTL/2)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down", "sessions", registry.Len())
		registry.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
