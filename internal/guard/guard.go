// Package guard gates the protected views: it waits while identity is still
// being resolved, sends visitors with neither a signed-in account nor a demo
// session to the auth view, and lets everyone else through.
package guard

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"decentrakyc/internal/auth"
	"decentrakyc/pkg/platform/httputil"
	"decentrakyc/pkg/requestcontext"
)

// SessionCookie carries the auth session token for browser clients.
const SessionCookie = "decentrakyc_session"

// AuthPath is where unauthenticated visitors are sent.
const AuthPath = "/auth"

type Decision int

const (
	DecisionLoading Decision = iota
	DecisionRedirect
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionRedirect:
		return "redirect"
	case DecisionAllow:
		return "allow"
	}
	return "unknown"
}

// AuthState is the auth collaborator's view of the current visitor.
type AuthState struct {
	Loading  bool
	Identity *auth.Identity
}

// Evaluate decides what a protected view renders.
func Evaluate(state AuthState, demoActive bool) Decision {
	if state.Loading {
		return DecisionLoading
	}
	if state.Identity == nil && !demoActive {
		return DecisionRedirect
	}
	return DecisionAllow
}

// IdentityResolver is the subset of auth.Service the guard needs.
type IdentityResolver interface {
	Ready() bool
	Identity(ctx context.Context, token string) (*auth.Identity, error)
}

// DemoSessions reports whether a browser profile has an active demo session.
type DemoSessions interface {
	DemoActive(profile string) bool
}

// Guard is the HTTP form of Evaluate.
type Guard struct {
	resolver IdentityResolver
	demo     DemoSessions
	logger   *slog.Logger
}

func New(resolver IdentityResolver, demo DemoSessions, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{resolver: resolver, demo: demo, logger: logger}
}

// State resolves the auth state of r without deciding anything.
func (g *Guard) State(r *http.Request) AuthState {
	if !g.resolver.Ready() {
		return AuthState{Loading: true}
	}
	token := TokenFromRequest(r)
	if token == "" {
		return AuthState{}
	}
	identity, err := g.resolver.Identity(r.Context(), token)
	if err != nil {
		g.logger.DebugContext(r.Context(), "ignoring unusable session token",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		return AuthState{}
	}
	return AuthState{Identity: identity}
}

// Require wraps next so it only runs for allowed visitors.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state := g.State(r)
		demoActive := g.demo.DemoActive(requestcontext.ProfileID(ctx))

		switch Evaluate(state, demoActive) {
		case DecisionLoading:
			w.Header().Set("Retry-After", "1")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		case DecisionRedirect:
			g.logger.InfoContext(ctx, "redirecting unauthenticated visitor",
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			w.Header().Set("Location", AuthPath)
			w.WriteHeader(http.StatusSeeOther)
		default:
			if state.Identity != nil {
				ctx = requestcontext.WithUserID(ctx, state.Identity.ID)
				ctx = WithIdentity(ctx, state.Identity)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

type identityKey struct{}

// WithIdentity stores the signed-in identity in ctx.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the identity stored by the guard, or nil.
func IdentityFrom(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityKey{}).(*auth.Identity)
	return identity
}
