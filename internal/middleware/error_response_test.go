package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/agrisense/internal/model"
)

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&body))
	return body
}

func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    *model.APIError
	}{
		{"validation", http.StatusBadRequest, model.NewValidationError("name is required")},
		{"farm not found", http.StatusNotFound, model.NewFarmNotFoundError("7b1f9a4e-3f6c-4c1e-9b0e-0d2f6f7b9c11")},
		{"duplicate account", http.StatusConflict, model.NewDuplicateAccountError()},
		{"upstream failed", http.StatusBadGateway, model.NewUpstreamFailedError("weather")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			WriteErrorResponse(w, tt.status, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

			body := decodeErrorBody(t, w)
			assert.Equal(t, tt.err.Code, body.Code)
			assert.Equal(t, tt.err.Message, body.Message)
			assert.Equal(t, tt.err.Category, body.Category)
			assert.Equal(t, tt.err.Action, body.Action)
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeErrorBody(t, w)
	assert.Equal(t, model.ErrCodeInternal, body.Code)
	assert.Equal(t, "system", body.Category)
	assert.NotEmpty(t, body.Action)
	assert.Equal(t, http.StatusInternalServerError, body.Status)
}

func TestErrorResponseBody_AllFieldsPresent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{Code: "C", Message: "M", Category: "K", Action: "A"})

	var raw map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Result().Body).Decode(&raw))
	for _, field := range []string{"code", "message", "category", "action", "status"} {
		assert.Contains(t, raw, field)
	}
}
