package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnGrosso13/r2up"
	r2uphttp "github.com/JohnGrosso13/r2up/http"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "not found",
			err:      fmt.Errorf("fetch object: %w", r2up.ErrNotFound),
			wantCode: http.StatusNotFound,
			wantErr:  "not_found",
		},
		{
			name:     "invalid input",
			err:      fmt.Errorf("create: %w", r2up.ErrInvalidInput),
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_input",
		},
		{
			name:     "store error",
			err:      &r2up.TransportError{Op: "upload buffer", StatusCode: 503, Body: "slow down"},
			wantCode: http.StatusBadGateway,
			wantErr:  "upstream_error",
		},
		{
			name:     "unknown error",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantErr:  "internal_error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r2uphttp.HandleError(rec, tc.err)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var errResp r2uphttp.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, tc.wantErr, errResp.Error)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := r2uphttp.WriteJSON(rec, http.StatusCreated, map[string]string{"k": "v"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}
