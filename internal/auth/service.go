// Package auth is the account-based sign-in path that runs alongside the demo
// session: registration, password sign-in, bearer session tokens and sign-out.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/platform/sentinel"
	"decentrakyc/pkg/requestcontext"
)

// MinPasswordLength is the shortest password sign-up accepts.
const MinPasswordLength = 6

// SessionTTL is the default lifetime of issued session tokens.
const SessionTTL = 24 * time.Hour

// Error messages returned to callers. Classify matches on these.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgEmailNotConfirmed  = "Email not confirmed"
	msgAlreadyRegistered  = "User already registered"
	msgWeakPassword       = "Password should be at least 6 characters"
	msgInvalidEmail       = "Unable to validate email address: invalid format"
)

var ErrEmailTaken = dErrors.New(dErrors.CodeConflict, msgAlreadyRegistered)

// Service implements sign-up, sign-in and sign-out against a UserStore.
type Service struct {
	users       UserStore
	tokens      *TokenService
	logger      *slog.Logger
	autoConfirm bool
	bcryptCost  int
	ready       atomic.Bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAutoConfirm skips the email confirmation step on sign-up.
func WithAutoConfirm(enabled bool) Option {
	return func(s *Service) {
		s.autoConfirm = enabled
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func NewService(users UserStore, tokens *TokenService, opts ...Option) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		logger:     slog.Default(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start finishes initial resolution. Until it returns, Ready reports false
// and guarded views answer with a loading state.
func (s *Service) Start(ctx context.Context) error {
	if len(s.tokens.signingKey) == 0 {
		return dErrors.New(dErrors.CodeInternal, "jwt signing key is not configured")
	}
	s.ready.Store(true)
	s.logger.InfoContext(ctx, "auth service ready", "auto_confirm", s.autoConfirm)
	return nil
}

// Ready reports whether the identity of a request can be resolved yet.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// SignUp registers a new account. Unless auto-confirm is on, the account
// cannot sign in until confirmed.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*SignUpResult, error) {
	email = strings.TrimSpace(email)
	if !govalidator.IsEmail(email) {
		return nil, dErrors.New(dErrors.CodeValidation, msgInvalidEmail)
	}
	if len(password) < MinPasswordLength {
		return nil, dErrors.New(dErrors.CodeValidation, msgWeakPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		Confirmed:    s.autoConfirm,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"confirmed", user.Confirmed,
		"request_id", requestcontext.RequestID(ctx),
	)

	result := &SignUpResult{Identity: user.Identity(), ConfirmationRequired: !user.Confirmed}
	if user.Confirmed {
		session, err := s.issue(user.Identity())
		if err != nil {
			return nil, err
		}
		result.Session = session
	}
	return result, nil
}

// SignIn checks credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, msgInvalidCredentials)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "sign-in rejected",
			"user_id", user.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, msgInvalidCredentials)
	}
	if !user.Confirmed {
		return nil, dErrors.New(dErrors.CodeForbidden, msgEmailNotConfirmed)
	}
	return s.issue(user.Identity())
}

// SignOut revokes token. Signing out with an invalid token is an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}
	s.tokens.Revoke(claims.ID, claims.ExpiresAt.Time)
	s.logger.InfoContext(ctx, "user signed out",
		"user_id", claims.Subject,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Identity resolves a session token to the signed-in user.
func (s *Service) Identity(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing token")
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: claims.Subject, Email: claims.Email, DisplayName: claims.DisplayName}, nil
}

// Confirm marks an account as email-confirmed.
func (s *Service) Confirm(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := s.users.Confirm(ctx, user.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to confirm user")
	}
	return nil
}

func (s *Service) issue(identity Identity) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session token")
	}
	return &Session{AccessToken: token, ExpiresAt: expiresAt, Identity: identity}, nil
}
