// Package testutil holds helpers shared by handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewJSONRequest builds a request whose body is payload encoded as JSON.
// A nil payload leaves the body empty.
func NewJSONRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload), "encode %T", payload)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func DoRequest(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// UnmarshalResponse decodes the recorded body as T.
func UnmarshalResponse[T any](t *testing.T, w *httptest.ResponseRecorder) *T {
	t.Helper()
	out := new(T)
	require.NoErrorf(t, json.NewDecoder(w.Body).Decode(out), "decode %T from %q", out, w.Body.String())
	return out
}

// AssertStatusAndError checks the status and the code of the error envelope.
func AssertStatusAndError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	raw := w.Body.String()
	assert.Equalf(t, status, w.Code, "body: %s", raw)
	var envelope struct {
		Error string `json:"error"`
	}
	require.NoErrorf(t, json.Unmarshal([]byte(raw), &envelope), "error envelope: %s", raw)
	assert.Equal(t, code, envelope.Error)
}
