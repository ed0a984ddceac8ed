// Package profile identifies the browser profile a request comes from. Each
// profile owns one demo session, the way each browser kept its own local
// storage entry.
package profile

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"decentrakyc/pkg/requestcontext"
)

// HeaderName lets non-browser clients name their profile explicitly.
const HeaderName = "X-Profile-ID"

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "decentrakyc_profile"

const cookieMaxAge = 365 * 24 * time.Hour

type config struct {
	cookieName string
	secure     bool
}

type Option func(*config)

func WithCookieName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// WithSecureCookie marks the profile cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(c *config) {
		c.secure = secure
	}
}

// Middleware resolves the profile id from the X-Profile-ID header or the
// profile cookie, minting and setting a new cookie when neither is usable.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := config{cookieName: DefaultCookieName}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromRequest(r, cfg.cookieName)
			if !ok {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.cookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := requestcontext.WithProfileID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromRequest returns a well-formed profile id carried by r.
func FromRequest(r *http.Request, cookieName string) (string, bool) {
	if v := r.Header.Get(HeaderName); valid(v) {
		return v, true
	}
	if c, err := r.Cookie(cookieName); err == nil && valid(c.Value) {
		return c.Value, true
	}
	return "", false
}

func valid(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
