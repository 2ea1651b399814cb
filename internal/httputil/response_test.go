package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/coregate/gateway/internal/errors"
)

func TestMakeJSONResponse(t *testing.T) {
	tests := []struct {
		name         string
		body         interface{}
		statusCode   int
		expectedBody string
	}{
		{
			name:         "success response",
			body:         map[string]string{"status": "ok"},
			statusCode:   http.StatusOK,
			expectedBody: `{"status":"ok"}`,
		},
		{
			name:         "error response",
			body:         map[string]string{"error": "something went wrong"},
			statusCode:   http.StatusInternalServerError,
			expectedBody: `{"error":"something went wrong"}`,
		},
		{
			name: "complex object",
			body: map[string]interface{}{
				"id":   1,
				"name": "Test",
				"data": map[string]string{"key": "value"},
			},
			statusCode:   http.StatusOK,
			expectedBody: `{"data":{"key":"value"},"id":1,"name":"Test"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			MakeJSONResponse(w, tt.statusCode, tt.body)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedKind string
	}{
		{
			name:         "not found",
			err:          apperrors.ErrNotFound,
			expectedCode: http.StatusNotFound,
			expectedKind: "not_found",
		},
		{
			name:         "in use maps to conflict",
			err:          apperrors.Wrap(apperrors.ErrInUse, "envelope key referenced by dek"),
			expectedCode: http.StatusConflict,
			expectedKind: "conflict",
		},
		{
			name:         "broker state mismatch maps to conflict",
			err:          apperrors.ErrBrokerStateMismatch,
			expectedCode: http.StatusConflict,
			expectedKind: "conflict",
		},
		{
			name:         "invalid input",
			err:          apperrors.Wrap(apperrors.ErrInvalidInput, "bad arn"),
			expectedCode: http.StatusUnprocessableEntity,
			expectedKind: "invalid_input",
		},
		{
			name:         "invalid cursor maps to invalid input",
			err:          apperrors.ErrInvalidCursor,
			expectedCode: http.StatusUnprocessableEntity,
			expectedKind: "invalid_input",
		},
		{
			name:         "broker unsupported maps to invalid input",
			err:          apperrors.ErrBrokerUnsupported,
			expectedCode: http.StatusUnprocessableEntity,
			expectedKind: "invalid_input",
		},
		{
			name:         "transient maps to unavailable",
			err:          apperrors.Wrap(apperrors.ErrTransient, "kms throttled"),
			expectedCode: http.StatusServiceUnavailable,
			expectedKind: "unavailable",
		},
		{
			name:         "crypto failure stays internal",
			err:          apperrors.ErrCryptoFailure,
			expectedCode: http.StatusInternalServerError,
			expectedKind: "internal_error",
		},
		{
			name:         "registry poisoned stays internal",
			err:          apperrors.ErrRegistryPoisoned,
			expectedCode: http.StatusInternalServerError,
			expectedKind: "internal_error",
		},
		{
			name:         "unknown error stays internal",
			err:          errors.New("boom"),
			expectedCode: http.StatusInternalServerError,
			expectedKind: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tt.err, slog.New(slog.NewTextHandler(io.Discard, nil)))

			assert.Equal(t, tt.expectedCode, w.Code)

			var resp ErrorResponse
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedKind, resp.Error)
		})
	}
}

func TestHandleErrorNilError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
