// Package handler serves the demo views: dashboard, KYC flow and admin panel.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"decentrakyc/internal/demo/models"
	"decentrakyc/internal/demo/progress"
	"decentrakyc/internal/demo/service"
	"decentrakyc/internal/guard"
	"decentrakyc/internal/notify"
	"decentrakyc/internal/transport/http/shared"
	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/platform/middleware/admin"
	"decentrakyc/pkg/requestcontext"
)

// Sessions looks up the demo session of a browser profile.
type Sessions interface {
	Lookup(profile string) (*service.Provider, bool)
}

const (
	msgWalletConnected = "Demo wallet connected successfully!"
	msgLoggedOut       = "Logged out successfully"
	msgKycCompleted    = "KYC verification completed! 🎉"
	msgDemoReset       = "Demo data has been reset successfully!"
)

type Handler struct {
	sessions   Sessions
	guard      *guard.Guard
	signOut    http.HandlerFunc
	notifier   notify.Notifier
	logger     *slog.Logger
	adminToken string
}

// New builds the demo views. signOut serves the dashboard logout for
// signed-in accounts.
func New(sessions Sessions, g *guard.Guard, signOut http.HandlerFunc, notifier notify.Notifier, logger *slog.Logger, adminToken string) *Handler {
	return &Handler{
		sessions:   sessions,
		guard:      g,
		signOut:    signOut,
		notifier:   notifier,
		logger:     logger,
		adminToken: adminToken,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require)

		r.Get("/dashboard", h.handleDashboard)
		r.Post("/dashboard/wallet", h.handleConnectWallet)
		r.Post("/dashboard/logout", h.handleLogout)

		r.Get("/kyc", h.handleKyc)
		r.Post("/kyc/documents/{type}", h.handleUpload)
		r.Post("/kyc/sample/{type}", h.handleSample)
		r.Post("/kyc/complete", h.handleComplete)

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
			r.Get("/", h.handleAdmin)
			r.Post("/reset", h.handleReset)
			r.Put("/kyc-status", h.handleSetKycStatus)
			r.Put("/verification-step", h.handleSetVerificationStep)
		})
	})
}

type dashboardResponse struct {
	User     *models.DemoUser `json:"user"`
	IsDemo   bool             `json:"isDemo"`
	Progress int              `json:"progress"`
}

type kycResponse struct {
	Documents []progress.DocumentView `json:"documents"`
	Progress  int                     `json:"progress"`
	Verified  int                     `json:"verified"`
	Required  int                     `json:"required"`
	Complete  bool                    `json:"complete"`
}

type adminResponse struct {
	User  *models.DemoUser `json:"user"`
	Stats progress.Summary `json:"stats"`
}

type uploadRequest struct {
	Filename string `json:"filename"`
}

type kycStatusRequest struct {
	Status string `json:"status"`
}

type verificationStepRequest struct {
	Step int `json:"step"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	provider := h.provider(r.Context())
	user := h.currentUser(r.Context(), provider)
	shared.Respond(w, r, http.StatusOK, dashboardResponse{
		User:     user,
		IsDemo:   provider != nil,
		Progress: progress.OverallProgress(user),
	}, "")
}

func (h *Handler) handleConnectWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := h.provider(ctx)
	if provider != nil {
		if err := provider.ConnectWallet(ctx); err != nil {
			h.fail(w, r, "connect wallet", err)
			return
		}
		if user := provider.User(); user != nil {
			if err := provider.UpdateVerificationStep(ctx, max(user.VerificationStep, models.StepWalletConnected)); err != nil {
				h.fail(w, r, "raise verification step", err)
				return
			}
		}
	}
	notify.Success(ctx, h.notifier, msgWalletConnected)
	shared.Respond(w, r, http.StatusOK, h.currentUser(ctx, provider), "")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if h.provider(r.Context()) != nil {
		notify.Success(r.Context(), h.notifier, msgLoggedOut)
		shared.Respond(w, r, http.StatusOK, nil, guard.AuthPath)
		return
	}
	h.signOut(w, r)
}

func (h *Handler) handleKyc(w http.ResponseWriter, r *http.Request) {
	user := h.demoUser(r.Context())
	verified, required := progress.RequiredCounts(user)
	shared.Respond(w, r, http.StatusOK, kycResponse{
		Documents: progress.Documents(user),
		Progress:  progress.DocumentProgress(user),
		Verified:  verified,
		Required:  required,
		Complete:  progress.IsKycComplete(user),
	}, "")
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	spec, err := documentSpec(r)
	if err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	var req uploadRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = spec.SampleFilename
	}

	var doc *models.DemoDocument
	if provider := h.provider(ctx); provider != nil {
		uploaded, err := provider.UploadDocument(ctx, spec.Type, filename)
		if err != nil {
			h.fail(w, r, "upload document", err)
			return
		}
		doc = &uploaded
	}
	notify.Success(ctx, h.notifier, fmt.Sprintf("%s uploaded successfully!", spec.Name))
	shared.Respond(w, r, http.StatusCreated, doc, "")
}

func (h *Handler) handleSample(w http.ResponseWriter, r *http.Request) {
	spec, err := documentSpec(r)
	if err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	// Only the first hyphen becomes a space: "proof of-address".
	label := strings.Replace(spec.Type.String(), "-", " ", 1)
	notify.Info(r.Context(), h.notifier, fmt.Sprintf("Sample %s would be downloaded in a real implementation", label))
	shared.Respond(w, r, http.StatusOK, nil, "")
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := h.provider(ctx)
	var user *models.DemoUser
	if provider != nil {
		user = provider.User()
	}
	if !progress.IsKycComplete(user) {
		shared.RespondError(w, r, dErrors.New(dErrors.CodeConflict, "all required documents must be verified first"), "")
		return
	}
	if err := provider.UpdateVerificationStep(ctx, models.StepKycComplete); err != nil {
		h.fail(w, r, "complete kyc", err)
		return
	}
	notify.Success(ctx, h.notifier, msgKycCompleted)
	shared.Respond(w, r, http.StatusOK, provider.User(), "/dashboard")
}

func (h *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	user := h.demoUser(r.Context())
	shared.Respond(w, r, http.StatusOK, adminResponse{User: user, Stats: progress.Stats(user)}, "")
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if provider := h.provider(ctx); provider != nil {
		if err := provider.Reset(ctx); err != nil {
			h.fail(w, r, "reset demo", err)
			return
		}
	}
	notify.Success(ctx, h.notifier, msgDemoReset)
	shared.Respond(w, r, http.StatusOK, nil, guard.AuthPath)
}

func (h *Handler) handleSetKycStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req kycStatusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	status, err := models.ParseKycStatus(req.Status)
	if err != nil {
		shared.RespondError(w, r, dErrors.New(dErrors.CodeBadRequest, err.Error()), "")
		return
	}
	provider := h.provider(ctx)
	if provider != nil {
		if err := provider.UpdateKycStatus(ctx, status); err != nil {
			h.fail(w, r, "update kyc status", err)
			return
		}
	}
	shared.Respond(w, r, http.StatusOK, h.demoUser(ctx), "")
}

func (h *Handler) handleSetVerificationStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req verificationStepRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondError(w, r, err, "")
		return
	}
	provider := h.provider(ctx)
	if provider != nil {
		if err := provider.UpdateVerificationStep(ctx, req.Step); err != nil {
			h.fail(w, r, "update verification step", err)
			return
		}
	}
	shared.Respond(w, r, http.StatusOK, h.demoUser(ctx), "")
}

// provider returns the active demo session of the calling profile, or nil.
func (h *Handler) provider(ctx context.Context) *service.Provider {
	p, ok := h.sessions.Lookup(requestcontext.ProfileID(ctx))
	if !ok || !p.IsDemo() {
		return nil
	}
	return p
}

func (h *Handler) demoUser(ctx context.Context) *models.DemoUser {
	if p := h.provider(ctx); p != nil {
		return p.User()
	}
	return nil
}

// currentUser is the demo user when a demo session is active, otherwise a
// pending placeholder built from the signed-in identity.
func (h *Handler) currentUser(ctx context.Context, provider *service.Provider) *models.DemoUser {
	if provider != nil {
		return provider.User()
	}
	u := &models.DemoUser{
		Name:             "User",
		KycStatus:        models.KycStatusPending,
		Documents:        []models.DemoDocument{},
		VerificationStep: models.StepInitial,
		CreatedAt:        requestcontext.Now(ctx),
	}
	if identity := guard.IdentityFrom(ctx); identity != nil {
		u.ID = identity.ID
		u.Email = identity.Email
		if identity.DisplayName != "" {
			u.Name = identity.DisplayName
		}
	}
	return u
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	if dErrors.HasCode(err, dErrors.CodeBadRequest) {
		h.logger.WarnContext(ctx, "invalid "+op+" request",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"error", err,
			"profile", requestcontext.ProfileID(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	shared.RespondError(w, r, err, "")
}

func documentSpec(r *http.Request) (models.DocumentSpec, error) {
	docType, err := models.ParseDocumentType(chi.URLParam(r, "type"))
	if err != nil {
		return models.DocumentSpec{}, dErrors.New(dErrors.CodeBadRequest, err.Error())
	}
	spec, ok := models.Spec(docType)
	if !ok {
		return models.DocumentSpec{}, dErrors.New(dErrors.CodeBadRequest, "unknown document type")
	}
	return spec, nil
}
