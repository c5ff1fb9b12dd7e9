package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attendtrack/attendance-backend/pkg/httputil"
)

// NewHTTPRequest creates a request with an optional JSON body
func NewHTTPRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(MustJSONBytes(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// AsUser attaches an authenticated identity the way the auth middleware would
func AsUser(req *http.Request, userID string, isAdmin bool) *http.Request {
	ctx := httputil.WithUserContext(req.Context(), userID, userID+"@example.com", isAdmin)
	return req.WithContext(ctx)
}

// ExecuteRequest runs req against handler and returns the recorder
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Envelope is the decoded form of httputil.Response with the data left raw
type Envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *httputil.ErrorBody `json:"error"`
	Meta    *httputil.Meta      `json:"meta"`
}

// ParseEnvelope decodes the response envelope and, if target is non-nil, its data
func ParseEnvelope(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	if target != nil {
		require.NoError(t, json.Unmarshal(env.Data, target), "data: %s", string(env.Data))
	}
	return env
}

// MustJSONBytes marshals v or panics
func MustJSONBytes(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// At returns the given wall-clock time in UTC
func At(year int, month time.Month, day, hour, min, sec int) time.Time {
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC)
}

// FixedClock returns a clock function that always reports t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func PtrString(s string) *string { return &s }

func PtrFloat(f float64) *float64 { return &f }
