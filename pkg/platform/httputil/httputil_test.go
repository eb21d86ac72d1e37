package httputil

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "clocklayer/pkg/domain-errors"
)

func TestWriteErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		wantBody string
	}{
		{
			name:     "missing identity",
			err:      dErrors.New(dErrors.CodeUnauthorized, "identity session required"),
			status:   http.StatusUnauthorized,
			wantBody: `{"error":"unauthorized","error_description":"identity session required"}`,
		},
		{
			name:     "rejected verdict",
			err:      dErrors.New(dErrors.CodeVerdictRejected, "liveness score below threshold"),
			status:   http.StatusUnprocessableEntity,
			wantBody: `{"error":"verdict_rejected","error_description":"liveness score below threshold"}`,
		},
		{
			name:     "wrapped gateway failure keeps its code",
			err:      dErrors.Wrap(errors.New("dial tcp: refused"), dErrors.CodeExternalService, "identity gateway unavailable"),
			status:   http.StatusBadGateway,
			wantBody: `{"error":"external_service_error","error_description":"identity gateway unavailable"}`,
		},
		{
			name:     "internal message is hidden",
			err:      dErrors.New(dErrors.CodeInternal, "pq: relation does not exist"),
			status:   http.StatusInternalServerError,
			wantBody: `{"error":"internal_error"}`,
		},
		{
			name:     "uncoded error is internal",
			err:      errors.New("boom"),
			status:   http.StatusInternalServerError,
			wantBody: `{"error":"internal_error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestWriteJSONWithoutBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

type displayNameRequest struct {
	DisplayName string `json:"displayName"`
}

func (r *displayNameRequest) Validate() error {
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if r.DisplayName == "" {
		return dErrors.New(dErrors.CodeValidation, "displayName is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantName string
		wantCode string
	}{
		{name: "trims and accepts", body: `{"displayName":"  Rosa  "}`, wantOK: true, wantName: "Rosa"},
		{name: "blank name fails validation", body: `{"displayName":"   "}`, wantCode: "validation_error"},
		{name: "unknown field", body: `{"displayName":"Rosa","admin":true}`, wantCode: "bad_request"},
		{name: "not json", body: `displayName=Rosa`, wantCode: "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/signup/profile", strings.NewReader(tt.body))

			req, ok := DecodeAndPrepare[displayNameRequest](w, r, logger, r.Context(), "req-profile")
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantName, req.DisplayName)
				return
			}
			assert.Nil(t, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error":"`+tt.wantCode+`"`)
		})
	}
}
