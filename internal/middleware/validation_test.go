package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "portfoliograph/internal/errors"
	"portfoliograph/internal/shared/testutil"
	api "portfoliograph/pkg/contracts/api/v1"
)

func newValidation(t *testing.T) (*ValidationMiddleware, *QueryParamValidator) {
	logger, _ := testutil.NewTestLogger(t)
	eh := apierrors.NewErrorHandler(logger, false)
	return NewValidationMiddleware(logger, eh), NewQueryParamValidator(logger, eh)
}

func TestValidateRequestRejectsInvalidJSON(t *testing.T) {
	vm, _ := newValidation(t)
	called := false
	h := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/graph/rebuild", strings.NewReader("{min_corr")))

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateRequestAllowsEmptyBodyAndGet(t *testing.T) {
	vm, _ := newValidation(t)
	calls := 0
	h := vm.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/graph/rebuild", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/graph", nil))
	assert.Equal(t, 2, calls)
}

func TestValidateRequestRejectsOversizedBody(t *testing.T) {
	vm, _ := newValidation(t)
	vm.maxBodySize = 8
	h := vm.ValidateRequest(http.HandlerFunc(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dataset":"v2"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDecodeJSON(t *testing.T) {
	vm, _ := newValidation(t)

	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantField string
	}{
		{name: "valid", body: `{"dataset":"v2"}`},
		{name: "missing dataset", body: `{}`, wantErr: true, wantField: "dataset"},
		{name: "traversal", body: `{"dataset":"../etc"}`, wantErr: true, wantField: "dataset"},
		{name: "nested path", body: `{"dataset":"a/b"}`, wantErr: true, wantField: "dataset"},
		{name: "unknown field", body: `{"dataset":"v2","extra":1}`, wantErr: true},
		{name: "wrong type", body: `{"dataset":2}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req api.SelectDatasetRequest
			err := vm.DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), &req)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "v2", req.Dataset)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			if tt.wantField != "" {
				details := apiErr.Details.(apierrors.ValidationErrors)
				require.Len(t, details.Errors, 1)
				assert.Equal(t, tt.wantField, details.Errors[0].Field)
			}
		})
	}
}

func TestDecodeJSONRebuild(t *testing.T) {
	vm, _ := newValidation(t)

	var empty api.RebuildGraphRequest
	require.NoError(t, vm.DecodeJSON(httptest.NewRequest(http.MethodPost, "/", nil), &empty))
	assert.Nil(t, empty.MinCorr)

	var zero api.RebuildGraphRequest
	require.NoError(t, vm.DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"min_corr":0}`)), &zero))
	require.NotNil(t, zero.MinCorr)
	assert.Equal(t, 0.0, *zero.MinCorr)

	var negative api.RebuildGraphRequest
	err := vm.DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"min_corr":-0.1}`)), &negative)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierrors.CodeValidationFailed, apiErr.ErrorCode)
}

func TestValidateOptionalFloat(t *testing.T) {
	_, qv := newValidation(t)

	tests := []struct {
		query  string
		want   *float64
		wantOK bool
	}{
		{query: "", want: nil, wantOK: true},
		{query: "min_corr=0.5", want: floatPtr(0.5), wantOK: true},
		{query: "min_corr=0", want: floatPtr(0), wantOK: true},
		{query: "min_corr=abc", wantOK: false},
		{query: "min_corr=-1", wantOK: false},
		{query: "min_corr=NaN", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := qv.ValidateOptionalFloat(rec, httptest.NewRequest(http.MethodGet, "/api/graph?"+tt.query, nil), "min_corr", 0)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if !tt.wantOK {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, apierrors.TypeValidation, body["type"])
			}
		})
	}
}

func floatPtr(f float64) *float64 { return &f }
