// Package requestid tags every request with an id for log correlation.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"decentrakyc/pkg/requestcontext"
)

// HeaderName is read from incoming requests and echoed on responses.
const HeaderName = "X-Request-ID"

const maxLength = 128

// Middleware keeps a sane incoming X-Request-ID or generates one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderName)
		if id == "" || len(id) > maxLength {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderName, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
