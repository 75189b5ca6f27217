package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	require.NoError(t, ErrorResponse(rec, http.StatusNotFound, "not_found", "person 7 not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"error": "not_found", "message": "person 7 not found"}, decodeErrorBody(t, rec))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]int{"rows": 3}))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"rows":3}`, rec.Body.String())

	assert.Error(t, WriteJSON(httptest.NewRecorder(), http.StatusOK, make(chan int)))
}

func TestWriteData_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()

	writeData(rec, http.StatusOK, []int64{1, 2}, zap.NewNop())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[1,2]}`, rec.Body.String())
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"not found", fmt.Errorf("person 4: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid input", fmt.Errorf("bad status: %w", apperrors.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{"unresolved", fmt.Errorf("child -3: %w", apperrors.ErrUnresolvedReference), http.StatusBadRequest, "invalid_input"},
		{"conflict", apperrors.ErrConflict, http.StatusConflict, "conflict"},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, "thing_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err, "thing_failed", zap.NewNop())

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeErrorBody(t, rec)["error"])
		})
	}
}

func TestWriteServiceError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, errors.New("password=secret"), "thing_failed", zap.NewNop())

	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode int
	}{
		{"valid", `{"rows":[]}`, true, http.StatusOK},
		{"malformed", `{"rows":`, false, http.StatusBadRequest},
		{"too large", `{"rows":"` + strings.Repeat("x", maxBodyBytes) + `"}`, false, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/import", strings.NewReader(tt.body))

			var v map[string]any
			ok := decodeJSON(rec, req, &v, zap.NewNop())

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
