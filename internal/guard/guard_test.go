package guard

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decentrakyc/internal/auth"
	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/requestcontext"
)

type stubResolver struct {
	ready      bool
	identities map[string]*auth.Identity
}

func (s *stubResolver) Ready() bool { return s.ready }

func (s *stubResolver) Identity(_ context.Context, token string) (*auth.Identity, error) {
	if id, ok := s.identities[token]; ok {
		return id, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

type stubDemo map[string]bool

func (s stubDemo) DemoActive(profile string) bool { return s[profile] }

func TestEvaluate(t *testing.T) {
	identity := &auth.Identity{ID: "u-1"}
	tests := []struct {
		name  string
		state AuthState
		demo  bool
		want  Decision
	}{
		{"loading wins over demo", AuthState{Loading: true}, true, DecisionLoading},
		{"loading wins over identity", AuthState{Loading: true, Identity: identity}, false, DecisionLoading},
		{"nobody", AuthState{}, false, DecisionRedirect},
		{"demo only", AuthState{}, true, DecisionAllow},
		{"identity only", AuthState{Identity: identity}, false, DecisionAllow},
		{"both", AuthState{Identity: identity}, true, DecisionAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.state, tt.demo))
		})
	}
}

func TestRequire(t *testing.T) {
	identity := &auth.Identity{ID: "u-1", Email: "a@example.com"}
	resolver := &stubResolver{ready: true, identities: map[string]*auth.Identity{"good": identity}}
	demo := stubDemo{"demo-profile": true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen *auth.Identity
	var seenUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		seenUserID = requestcontext.UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	serve := func(g *Guard, profile string, mutate func(*http.Request)) *httptest.ResponseRecorder {
		seen, seenUserID = nil, ""
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req = req.WithContext(requestcontext.WithProfileID(req.Context(), profile))
		if mutate != nil {
			mutate(req)
		}
		rec := httptest.NewRecorder()
		g.Require(next).ServeHTTP(rec, req)
		return rec
	}

	t.Run("loading", func(t *testing.T) {
		g := New(&stubResolver{}, demo, logger)
		rec := serve(g, "demo-profile", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "loading", body["status"])
	})

	t.Run("redirects with an empty body", func(t *testing.T) {
		rec := serve(New(resolver, demo, logger), "stranger", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, AuthPath, rec.Header().Get("Location"))
		assert.Empty(t, rec.Body.String())
	})

	t.Run("invalid token is treated as anonymous", func(t *testing.T) {
		rec := serve(New(resolver, demo, logger), "stranger", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer forged")
		})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	})

	t.Run("demo session passes without identity", func(t *testing.T) {
		rec := serve(New(resolver, demo, logger), "demo-profile", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("bearer token", func(t *testing.T) {
		rec := serve(New(resolver, demo, logger), "stranger", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer good")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, identity, seen)
		assert.Equal(t, "u-1", seenUserID)
	})

	t.Run("session cookie", func(t *testing.T) {
		rec := serve(New(resolver, demo, logger), "stranger", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"})
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, identity, seen)
	})
}
