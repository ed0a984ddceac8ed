// Package shared holds the response envelope every view endpoint uses: the
// payload, the notifications raised while serving the request, and an
// optional navigation target for the front end.
package shared

import (
	"encoding/json"
	"net/http"

	"decentrakyc/internal/notify"
	dErrors "decentrakyc/pkg/domain-errors"
	"decentrakyc/pkg/platform/httputil"
)

// Response is the success envelope.
type Response struct {
	Data          any                   `json:"data,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
	Navigate      string                `json:"navigate,omitempty"`
}

// ErrorResponse is the failure envelope. It keeps the error/error_description
// pair of httputil.WriteError.
type ErrorResponse struct {
	Error            string                `json:"error"`
	ErrorDescription string                `json:"error_description,omitempty"`
	Category         string                `json:"category,omitempty"`
	Notifications    []notify.Notification `json:"notifications"`
}

// CollectNotifications attaches a notification collector to every request.
func CollectNotifications(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := notify.WithCollector(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Respond writes data with the notifications collected so far.
func Respond(w http.ResponseWriter, r *http.Request, status int, data any, navigate string) {
	httputil.WriteJSON(w, status, Response{
		Data:          data,
		Notifications: collected(r),
		Navigate:      navigate,
	})
}

// RespondError writes err as a coded error envelope. Internal errors never
// expose their description.
func RespondError(w http.ResponseWriter, r *http.Request, err error, category string) {
	status := http.StatusInternalServerError
	body := ErrorResponse{
		Error:         string(dErrors.CodeInternal),
		Category:      category,
		Notifications: collected(r),
	}
	if de, ok := dErrors.As(err); ok {
		status = dErrors.ToHTTPStatus(de.Code)
		body.Error = string(de.Code)
		if de.Code != dErrors.CodeInternal {
			body.ErrorDescription = de.Message
		}
	}
	httputil.WriteJSON(w, status, body)
}

// DecodeJSON reads a JSON body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

func collected(r *http.Request) []notify.Notification {
	if c := notify.CollectorFrom(r.Context()); c != nil {
		return c.Items()
	}
	return []notify.Notification{}
}
