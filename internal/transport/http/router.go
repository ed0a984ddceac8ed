// Package httptransport composes the middleware stack and view handlers into
// the service router.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"decentrakyc/internal/demo/service"
	"decentrakyc/internal/platform/metrics"
	"decentrakyc/internal/transport/http/shared"
	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/platform/httputil"
	"decentrakyc/pkg/platform/middleware/admin"
	"decentrakyc/pkg/platform/middleware/metadata"
	"decentrakyc/pkg/platform/middleware/profile"
	"decentrakyc/pkg/platform/middleware/requestid"
	"decentrakyc/pkg/platform/middleware/requesttime"
	"decentrakyc/pkg/requestcontext"
)

const healthTimeout = 2 * time.Second

// Registrar is a handler that mounts its routes on a chi router.
type Registrar interface {
	Register(r chi.Router)
}

// DemoMounter starts the demo session of a profile.
type DemoMounter interface {
	Get(ctx context.Context, profile string) (*service.Provider, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Config collects everything the router needs.
type Config struct {
	Logger         *slog.Logger
	Handlers       []Registrar
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	ProfileCookie  string
	SecureCookies  bool
	// Checks are run by /health; any failure reports 503.
	Checks map[string]Check
	// Demo, when set, mounts a demo session for every visiting profile.
	Demo DemoMounter
}

// NewRouter wires the middleware stack, the health and metrics endpoints, and
// every registered handler.
func NewRouter(cfg Config) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cfg.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", admin.HeaderName, profile.HeaderName},
		ExposedHeaders:   []string{requestid.HeaderName, profile.HeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/health", health(cfg.Checks, logger))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(profile.Middleware(
			profile.WithCookieName(cfg.ProfileCookie),
			profile.WithSecureCookie(cfg.SecureCookies),
		))
		r.Use(shared.CollectNotifications)
		if cfg.Demo != nil {
			r.Use(demoMode(cfg.Demo, logger))
		}
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "endpoint not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
	})

	return r
}

func health(checks map[string]Check, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		body := map[string]string{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"check", name,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				body[name] = "unavailable"
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}

func demoMode(demo DemoMounter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, err := demo.Get(ctx, requestcontext.ProfileID(ctx)); err != nil {
				logger.WarnContext(ctx, "failed to start demo session",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
