package httptransport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decentrakyc/internal/auth"
	authhandler "decentrakyc/internal/auth/handler"
	demohandler "decentrakyc/internal/demo/handler"
	"decentrakyc/internal/demo/service"
	"decentrakyc/internal/demo/store"
	"decentrakyc/internal/guard"
	"decentrakyc/internal/notify"
	"decentrakyc/internal/platform/metrics"
	httptransport "decentrakyc/internal/transport/http"
	"decentrakyc/pkg/platform/middleware/profile"
	"decentrakyc/pkg/platform/middleware/requestid"
)

const (
	profileA = "0b6f3d52-8a51-4c4e-9d0c-1f5f9f3a7e01"
	profileB = "0b6f3d52-8a51-4c4e-9d0c-1f5f9f3a7e02"
)

type fixture struct {
	router   http.Handler
	registry *service.Registry
}

type fixtureOptions struct {
	demoMode     bool
	checks       map[string]httptransport.Check
	registryOpts []service.RegistryOption
}

func newFixture(t *testing.T, demoMode bool, checks ...map[string]httptransport.Check) fixture {
	t.Helper()
	opts := fixtureOptions{demoMode: demoMode}
	if len(checks) > 0 {
		opts.checks = checks[0]
	}
	return newFixtureWith(t, opts)
}

func newFixtureWith(t *testing.T, opts fixtureOptions) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemoryStore()
	registry := service.NewRegistry(func(p string) *service.Provider {
		return service.NewProvider(p, st, service.WithScheduler(service.NewManualScheduler()), service.WithLogger(logger))
	}, opts.registryOpts...)

	authService := auth.NewService(auth.NewInMemoryUserStore(), auth.NewTokenService("test-key", "decentrakyc", auth.SessionTTL),
		auth.WithLogger(logger), auth.WithBcryptCost(4), auth.WithAutoConfirm(true))
	require.NoError(t, authService.Start(context.Background()))

	notifier := notify.NewMulti()
	authH := authhandler.New(authService, registry, notifier, logger, false)
	g := guard.New(authService, registry, logger)
	demoH := demohandler.New(registry, g, authH.HandleSignOut, notifier, logger, "")

	reg := prometheus.NewRegistry()
	cfg := httptransport.Config{
		Logger:         logger,
		Handlers:       []httptransport.Registrar{authH, demoH},
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	if opts.demoMode {
		cfg.Demo = registry
	}
	cfg.Checks = opts.checks
	return fixture{router: httptransport.NewRouter(cfg), registry: registry}
}

func (f fixture) do(method, path, profileID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if profileID != "" {
		req.Header.Set(profile.HeaderName, profileID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestid.HeaderName))
}

func TestHealthReportsFailedChecks(t *testing.T) {
	f := newFixture(t, false, map[string]httptransport.Check{
		"store": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","store":"unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.do(http.MethodGet, "/health", "")

	rec := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "decentrakyc_http_requests_total")
}

func TestNotFoundEnvelope(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"not_found"`)
}

func TestProfileCookieIsMinted(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/dashboard", "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, profile.DefaultCookieName, cookies[0].Name)
}

func TestDemoLoginUnlocksOnlyThatProfile(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/auth/demo-login", profileA)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/dashboard", profileA)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			IsDemo bool `json:"isDemo"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Data.IsDemo)

	rec = f.do(http.MethodGet, "/dashboard", profileB)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, guard.AuthPath, rec.Header().Get("Location"))
}

func TestDemoModeMountsEveryProfile(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/kyc", profileB)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.registry.DemoActive(profileB))
}

func TestDemoModeSessionsStayBounded(t *testing.T) {
	f := newFixtureWith(t, fixtureOptions{
		demoMode:     true,
		registryOpts: []service.RegistryOption{service.WithMaxProfiles(50)},
	})

	for range 500 {
		rec := f.do(http.MethodPost, "/auth/demo-login", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 50, f.registry.Len())
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/kyc/documents/passport", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
