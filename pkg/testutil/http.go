// Package testutil holds request builders and assertions shared by handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request whose body is body marshaled to JSON.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewRequest builds a request without a body.
func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// NewRequestWithBody builds a JSON request from a raw string, for malformed bodies.
func NewRequestWithBody(t *testing.T, method, path string, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest serves req on handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Envelope mirrors the view response envelope with the payload left raw.
type Envelope struct {
	Data             json.RawMessage `json:"data"`
	Notifications    []Notification  `json:"notifications"`
	Navigate         string          `json:"navigate"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Category         string          `json:"category"`
}

// Notification is the wire form of a toast.
type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// DecodeEnvelope reads the response envelope, failing the test on bad JSON.
func DecodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "failed to unmarshal envelope")
	return env
}

// DecodeData unmarshals the envelope payload into T.
func DecodeData[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), "failed to unmarshal payload")
	return out
}

// AssertToast asserts the envelope carries exactly one notification with message.
func AssertToast(t *testing.T, env Envelope, level, message string) {
	t.Helper()
	if assert.Len(t, env.Notifications, 1) {
		assert.Equal(t, level, env.Notifications[0].Level)
		assert.Equal(t, message, env.Notifications[0].Message)
	}
}

// AssertStatusAndError asserts both the status code and the envelope error code.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	t.Helper()
	assert.Equal(t, expectedStatus, rr.Code, "unexpected status code")
	assert.Equal(t, expectedCode, DecodeEnvelope(t, rr).Error, "unexpected error code")
}
