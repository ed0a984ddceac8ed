package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"decentrakyc/internal/auth"
	"decentrakyc/internal/demo/models"
	"decentrakyc/internal/demo/service"
	"decentrakyc/internal/demo/store"
	storemocks "decentrakyc/internal/demo/store/mocks"
	"decentrakyc/internal/guard"
	"decentrakyc/internal/notify"
	"decentrakyc/internal/transport/http/shared"
	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/platform/middleware/admin"
	"decentrakyc/pkg/platform/sentinel"
	"decentrakyc/pkg/testutil"
)

const (
	testProfile    = "6f1c2d3e-0000-4000-8000-000000000002"
	testAdminToken = "admin-secret"
	testToken      = "token-1"
)

type stubResolver struct {
	ready    bool
	identity *auth.Identity
}

func (s *stubResolver) Ready() bool { return s.ready }

func (s *stubResolver) Identity(_ context.Context, token string) (*auth.Identity, error) {
	if token != testToken || s.identity == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return s.identity, nil
}

type DemoHandlerSuite struct {
	suite.Suite
	scheduler *service.ManualScheduler
	registry  *service.Registry
	resolver  *stubResolver
	signOuts  int
	router    chi.Router
}

func TestDemoHandlerSuite(t *testing.T) {
	suite.Run(t, new(DemoHandlerSuite))
}

func (s *DemoHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemoryStore()
	s.scheduler = service.NewManualScheduler()
	s.registry = service.NewRegistry(func(profile string) *service.Provider {
		return service.NewProvider(profile, st, service.WithScheduler(s.scheduler), service.WithLogger(logger))
	})
	s.resolver = &stubResolver{ready: true}
	s.signOuts = 0

	signOut := func(w http.ResponseWriter, r *http.Request) {
		s.signOuts++
		shared.Respond(w, r, http.StatusOK, nil, guard.AuthPath)
	}
	g := guard.New(s.resolver, s.registry, logger)
	h := New(s.registry, g, signOut, notify.NewMulti(), logger, testAdminToken)

	s.router = chi.NewRouter()
	s.router.Use(shared.CollectNotifications)
	s.router.Use(testutil.ProfileMiddleware(testProfile))
	h.Register(s.router)
}

func (s *DemoHandlerSuite) startDemo() *service.Provider {
	p, err := s.registry.Get(context.Background(), testProfile)
	s.Require().NoError(err)
	return p
}

func (s *DemoHandlerSuite) do(req *http.Request) (*httptest.ResponseRecorder, testutil.Envelope) {
	rec := testutil.DoRequest(s.router, req)
	var body testutil.Envelope
	if rec.Body.Len() > 0 {
		body = testutil.DecodeEnvelope(s.T(), rec)
	}
	return rec, body
}

func (s *DemoHandlerSuite) adminRequest(method, path string, body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set(admin.HeaderName, testAdminToken)
	return req
}

func (s *DemoHandlerSuite) TestGuardRedirectsAnonymousVisitors() {
	for _, path := range []string{"/dashboard", "/kyc", "/admin"} {
		rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
		s.Equal(http.StatusSeeOther, rec.Code, path)
		s.Equal(guard.AuthPath, rec.Header().Get("Location"), path)
	}
}

func (s *DemoHandlerSuite) TestGuardWaitsWhileAuthLoads() {
	s.resolver.ready = false
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/dashboard"))
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("1", rec.Header().Get("Retry-After"))
}

func (s *DemoHandlerSuite) TestDashboard() {
	s.Run("demo session shows the demo user", func() {
		s.startDemo()
		rec, body := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/dashboard"))
		s.Require().Equal(http.StatusOK, rec.Code)

		resp := testutil.DecodeData[dashboardResponse](s.T(), body)
		s.True(resp.IsDemo)
		s.Equal(models.DemoName, resp.User.Name)
		s.Equal(25, resp.Progress)
	})

	s.Run("signed-in account gets a pending placeholder", func() {
		s.SetupTest()
		s.resolver.identity = &auth.Identity{ID: "u-1", Email: "jane@example.com"}
		req := testutil.NewRequest(s.T(), http.MethodGet, "/dashboard")
		req.Header.Set("Authorization", "Bearer "+testToken)
		rec, body := s.do(req)
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp dashboardResponse
		s.Require().NoError(json.Unmarshal(body.Data, &resp))
		s.False(resp.IsDemo)
		s.Equal("User", resp.User.Name)
		s.Equal("u-1", resp.User.ID)
		s.Equal(models.KycStatusPending, resp.User.KycStatus)
	})
}

func (s *DemoHandlerSuite) TestConnectWallet() {
	p := s.startDemo()
	rec, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/dashboard/wallet"))

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().Len(body.Notifications, 1)
	s.Equal(msgWalletConnected, body.Notifications[0].Message)
	user := p.User()
	s.Equal(models.DemoWalletAddress, user.WalletAddress)
	s.Equal(models.StepWalletConnected, user.VerificationStep)
}

func (s *DemoHandlerSuite) TestConnectWalletKeepsHigherStep() {
	p := s.startDemo()
	s.Require().NoError(p.UpdateVerificationStep(context.Background(), models.StepKycComplete))

	rec, _ := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/dashboard/wallet"))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StepKycComplete, p.User().VerificationStep)
}

func (s *DemoHandlerSuite) TestConnectWalletStepFailureHasNoSuccessToast() {
	ctrl := gomock.NewController(s.T())
	st := storemocks.NewMockStore(ctrl)
	gomock.InOrder(
		st.EXPECT().Load(gomock.Any(), testProfile).Return(nil, sentinel.ErrNotFound),
		st.EXPECT().Save(gomock.Any(), testProfile, gomock.Any()).Return(nil).Times(2),
		st.EXPECT().Save(gomock.Any(), testProfile, gomock.Any()).Return(errors.New("disk full")),
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := service.NewRegistry(func(profile string) *service.Provider {
		return service.NewProvider(profile, st, service.WithScheduler(s.scheduler), service.WithLogger(logger))
	})
	_, err := registry.Get(context.Background(), testProfile)
	s.Require().NoError(err)

	h := New(registry, guard.New(s.resolver, registry, logger), nil, notify.NewMulti(), logger, "")
	router := chi.NewRouter()
	router.Use(shared.CollectNotifications)
	router.Use(testutil.ProfileMiddleware(testProfile))
	h.Register(router)

	rec := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodPost, "/dashboard/wallet"))
	s.Equal(http.StatusInternalServerError, rec.Code)
	body := testutil.DecodeEnvelope(s.T(), rec)
	s.Equal(string(dErrors.CodeInternal), body.Error)
	s.Empty(body.Notifications)
}

func (s *DemoHandlerSuite) TestLogout() {
	s.Run("demo session navigates to auth", func() {
		s.startDemo()
		rec, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/dashboard/logout"))
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(guard.AuthPath, body.Navigate)
		s.Equal(msgLoggedOut, body.Notifications[0].Message)
		s.Zero(s.signOuts)
		s.True(s.registry.DemoActive(testProfile))
	})

	s.Run("account session signs out", func() {
		s.SetupTest()
		s.resolver.identity = &auth.Identity{ID: "u-1"}
		req := testutil.NewRequest(s.T(), http.MethodPost, "/dashboard/logout")
		req.Header.Set("Authorization", "Bearer "+testToken)
		rec, _ := s.do(req)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(1, s.signOuts)
	})
}

func (s *DemoHandlerSuite) TestUploadAndVerify() {
	p := s.startDemo()

	rec, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/kyc/documents/passport"))
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.Equal("Passport uploaded successfully!", body.Notifications[0].Message)

	var doc models.DemoDocument
	s.Require().NoError(json.Unmarshal(body.Data, &doc))
	s.Equal("sample-passport.pdf", doc.Filename)
	s.Equal(models.DocumentStatusUploaded, doc.Status)

	s.scheduler.Flush()
	s.Equal(models.KycStatusVerified, p.User().KycStatus)

	rec, body = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/kyc"))
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp kycResponse
	s.Require().NoError(json.Unmarshal(body.Data, &resp))
	s.Equal(1, resp.Verified)
	s.Equal(2, resp.Required)
	s.Equal(50, resp.Progress)
	s.False(resp.Complete)
	s.Require().Len(resp.Documents, len(models.Catalog))
	s.Equal(models.DocumentStatusVerified, resp.Documents[0].Status)
	s.Equal(models.DocumentStatusNotUploaded, resp.Documents[1].Status)
}

func (s *DemoHandlerSuite) TestUploadWithFilename() {
	s.startDemo()
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/kyc/documents/id-card", uploadRequest{Filename: "my-id.png"})
	rec, body := s.do(req)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var doc models.DemoDocument
	s.Require().NoError(json.Unmarshal(body.Data, &doc))
	s.Equal("my-id.png", doc.Filename)
	s.Equal(models.DocumentTypeIDCard, doc.Type)
}

func (s *DemoHandlerSuite) TestUploadUnknownType() {
	s.startDemo()
	rec, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/kyc/documents/selfie"))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(string(dErrors.CodeBadRequest), body.Error)
}

func (s *DemoHandlerSuite) TestSampleDownload() {
	s.startDemo()
	rec, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/kyc/sample/proof-of-address"))
	s.Require().Equal(http.StatusOK, rec.Code)
	testutil.AssertToast(s.T(), body, string(notify.LevelInfo),
		"Sample proof of-address would be downloaded in a real implementation")
}

func (s *DemoHandlerSuite) TestCompleteKyc() {
	p := s.startDemo()

	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/kyc/complete"))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, string(dErrors.CodeConflict))

	for _, path := range []string{"/kyc/documents/passport", "/kyc/documents/proof-of-address"} {
		rec, _ := s.do(testutil.NewRequest(s.T(), http.MethodPost, path))
		s.Require().Equal(http.StatusCreated, rec.Code)
	}
	s.scheduler.Flush()

	rec, body := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/kyc/complete"))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("/dashboard", body.Navigate)
	s.Equal(msgKycCompleted, body.Notifications[0].Message)
	s.Equal(models.StepKycComplete, p.User().VerificationStep)
}

func (s *DemoHandlerSuite) TestAdminRequiresToken() {
	s.startDemo()
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin"))
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *DemoHandlerSuite) TestAdminStats() {
	s.startDemo()
	s.do(testutil.NewRequest(s.T(), http.MethodPost, "/kyc/documents/passport"))
	s.do(testutil.NewRequest(s.T(), http.MethodPost, "/kyc/documents/id-card"))
	s.scheduler.Advance(service.ProcessingDelay)

	rec, body := s.do(s.adminRequest(http.MethodGet, "/admin", nil))
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp adminResponse
	s.Require().NoError(json.Unmarshal(body.Data, &resp))
	s.Equal(2, resp.Stats.TotalDocuments)
	s.Equal(2, resp.Stats.ProcessingDocuments)
	s.Zero(resp.Stats.VerifiedDocuments)
	s.Equal(models.KycStatusInProgress, resp.Stats.KycStatus)
}

func (s *DemoHandlerSuite) TestAdminOverrides() {
	p := s.startDemo()

	rec, _ := s.do(s.adminRequest(http.MethodPut, "/admin/kyc-status", kycStatusRequest{Status: "rejected"}))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.KycStatusRejected, p.User().KycStatus)

	rec, _ = s.do(s.adminRequest(http.MethodPut, "/admin/kyc-status", kycStatusRequest{Status: "approved"}))
	s.Equal(http.StatusBadRequest, rec.Code)

	rec, _ = s.do(s.adminRequest(http.MethodPut, "/admin/verification-step", verificationStepRequest{Step: 3}))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(3, p.User().VerificationStep)
}

func (s *DemoHandlerSuite) TestAdminReset() {
	p := s.startDemo()
	s.do(testutil.NewRequest(s.T(), http.MethodPost, "/kyc/documents/passport"))
	s.do(testutil.NewRequest(s.T(), http.MethodPost, "/dashboard/wallet"))

	rec, body := s.do(s.adminRequest(http.MethodPost, "/admin/reset", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(guard.AuthPath, body.Navigate)
	s.Equal(msgDemoReset, body.Notifications[0].Message)
	s.Empty(s.scheduler.Pending())

	user := p.User()
	s.Empty(user.Documents)
	s.Empty(user.WalletAddress)
	s.Equal(models.StepInitial, user.VerificationStep)
}
