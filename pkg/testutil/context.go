package testutil

import (
	"context"
	"net/http"

	"decentrakyc/pkg/requestcontext"
)

// WithProfile adds a browser profile id to the request context.
// This simulates what the profile middleware does for every request.
func WithProfile(req *http.Request, profile string) *http.Request {
	return req.WithContext(requestcontext.WithProfileID(req.Context(), profile))
}

// WithUserID adds an authenticated user ID to the request context.
// This simulates what the guard does for signed-in requests.
func WithUserID(req *http.Request, userID string) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}

// ProfileMiddleware pins every request to profile, for routers under test.
func ProfileMiddleware(profile string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithProfile(r, profile))
		})
	}
}
