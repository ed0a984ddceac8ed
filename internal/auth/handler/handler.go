// Package handler serves the auth view: demo login, account sign-in,
// sign-up and sign-out.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"decentrakyc/internal/auth"
	demomodels "decentrakyc/internal/demo/models"
	"decentrakyc/internal/demo/service"
	"decentrakyc/internal/guard"
	"decentrakyc/internal/notify"
	"decentrakyc/internal/transport/http/shared"
	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks AuthService

// AuthService is the account backend.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*auth.SignUpResult, error)
	SignOut(ctx context.Context, token string) error
	Confirm(ctx context.Context, email string) error
}

// DemoSessions starts demo sessions for browser profiles.
type DemoSessions interface {
	Get(ctx context.Context, profile string) (*service.Provider, error)
}

const (
	msgDemoLogin      = "Demo account logged in successfully!"
	msgSignedIn       = "Signed in successfully!"
	msgAccountCreated = "Account created successfully!"
	msgCheckEmail     = "Check your email to confirm your account!"
	msgSignedOut      = "Signed out successfully"
	msgSignOutFailed  = "Error signing out"
	msgUnexpected     = "An unexpected error occurred. Please try again."
)

type Handler struct {
	auth         AuthService
	demo         DemoSessions
	notifier     notify.Notifier
	logger       *slog.Logger
	secureCookie bool
	rateLimit    func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithRateLimit throttles every /auth endpoint with mw.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.rateLimit = mw
	}
}

func New(authService AuthService, demo DemoSessions, notifier notify.Notifier, logger *slog.Logger, secureCookie bool, opts ...Option) *Handler {
	h := &Handler{
		auth:         authService,
		demo:         demo,
		notifier:     notifier,
		logger:       logger,
		secureCookie: secureCookie,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		if h.rateLimit != nil {
			r.Use(h.rateLimit)
		}
		r.Post("/demo-login", h.recovering(h.handleDemoLogin))
		r.Post("/sign-in", h.recovering(h.handleSignIn))
		r.Post("/sign-up", h.recovering(h.handleSignUp))
		r.Post("/sign-out", h.recovering(h.HandleSignOut))
		r.Post("/confirm", h.recovering(h.handleConfirm))
	})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type confirmRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleDemoLogin(w http.ResponseWriter, r *http.Request) {
	h.demoLogin(w, r)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || strings.EqualFold(email, demomodels.DemoEmail) {
		h.demoLogin(w, r)
		return
	}

	session, err := h.auth.SignIn(r.Context(), email, req.Password)
	if err != nil {
		h.respondAuthError(w, r, "sign-in", err)
		return
	}
	h.setSessionCookie(w, session)
	notify.Success(r.Context(), h.notifier, msgSignedIn)
	shared.Respond(w, r, http.StatusOK, session, "/dashboard")
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, r, err, "")
		return
	}

	result, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.respondAuthError(w, r, "sign-up", err)
		return
	}
	if result.Session == nil {
		notify.Success(r.Context(), h.notifier, msgCheckEmail)
		shared.Respond(w, r, http.StatusCreated, result, "")
		return
	}
	h.setSessionCookie(w, result.Session)
	notify.Success(r.Context(), h.notifier, msgAccountCreated)
	shared.Respond(w, r, http.StatusCreated, result, "/dashboard")
}

// HandleSignOut revokes the caller's session token and clears the cookie.
// The dashboard logout reuses it for signed-in accounts.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.auth.SignOut(ctx, guard.TokenFromRequest(r)); err != nil {
		h.logger.WarnContext(ctx, "sign-out failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		notify.Error(ctx, h.notifier, msgSignOutFailed)
		shared.RespondError(w, r, err, "")
		return
	}
	h.clearSessionCookie(w)
	notify.Success(ctx, h.notifier, msgSignedOut)
	shared.Respond(w, r, http.StatusOK, nil, guard.AuthPath)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	if err := h.auth.Confirm(r.Context(), req.Email); err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	notify.Success(r.Context(), h.notifier, "Email confirmed. You can now sign in.")
	shared.Respond(w, r, http.StatusOK, nil, guard.AuthPath)
}

func (h *Handler) demoLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider, err := h.demo.Get(ctx, requestcontext.ProfileID(ctx))
	if err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	h.logger.InfoContext(ctx, "demo login",
		"profile", provider.Profile(),
		"browser", requestcontext.Browser(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	notify.Success(ctx, h.notifier, msgDemoLogin)
	shared.Respond(w, r, http.StatusOK, provider.User(), "/dashboard")
}

// respondAuthError turns a classified auth failure into an error
// notification. The form stays usable, so nothing navigates.
func (h *Handler) respondAuthError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	category, message := auth.Classify(err)
	if dErrors.HasCode(err, dErrors.CodeInternal) || !isCoded(err) {
		h.logger.ErrorContext(ctx, op+" failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		notify.Error(ctx, h.notifier, msgUnexpected)
		shared.RespondError(w, r, err, string(category))
		return
	}
	notify.Error(ctx, h.notifier, message)
	shared.RespondError(w, r, err, string(category))
}

// recovering reports a panic in an auth call as a generic failure instead of
// dropping the connection.
func (h *Handler) recovering(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				ctx := r.Context()
				h.logger.ErrorContext(ctx, "auth handler panic",
					"panic", fmt.Sprint(rec),
					"request_id", requestcontext.RequestID(ctx),
				)
				notify.Error(ctx, h.notifier, msgUnexpected)
				shared.RespondError(w, r, dErrors.New(dErrors.CodeInternal, "unexpected error"), "")
			}
		}()
		next(w, r)
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     guard.SessionCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     guard.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func isCoded(err error) bool {
	_, ok := dErrors.As(err)
	return ok
}
