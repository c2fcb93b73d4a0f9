package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portfoliograph/internal/services"
	"portfoliograph/internal/shared/testutil"
	api "portfoliograph/pkg/contracts/api/v1"
)

type mockHealthService struct {
	mock.Mock
}

func (m *mockHealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	return m.Called(ctx).Get(0).(api.HealthResponse)
}

func (m *mockHealthService) ReadinessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *mockHealthService) LivenessCheck(ctx context.Context) services.HealthStatus {
	return m.Called(ctx).Get(0).(services.HealthStatus)
}

func (m *mockHealthService) Version() map[string]interface{} {
	return m.Called().Get(0).(map[string]interface{})
}

func newHealthRouter(t *testing.T, svc HealthServiceInterface) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	h := NewHealthHandler(svc, logger)

	r := chi.NewRouter()
	r.Get("/api/health", h.HealthCheck)
	r.Get("/api/health/ready", h.ReadinessCheck)
	r.Get("/api/health/live", h.LivenessCheck)
	r.Get("/api/version", h.Version)
	return r
}

func TestHealthHandlerHealthCheck(t *testing.T) {
	t.Run("not built yet", func(t *testing.T) {
		svc := &mockHealthService{}
		svc.On("HealthCheck", mock.Anything).Return(api.HealthResponse{Status: "ok", Version: "dev"})

		rec := serve(newHealthRouter(t, svc), http.MethodGet, "/api/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","built_at":null,"active_dataset":null,"version":"dev"}`, rec.Body.String())
	})

	t.Run("built with last error", func(t *testing.T) {
		builtAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		dataset := "v1"
		minCorr := 0.25
		svc := &mockHealthService{}
		svc.On("HealthCheck", mock.Anything).Return(api.HealthResponse{
			Status:        "ok",
			BuiltAt:       &builtAt,
			ActiveDataset: &dataset,
			MinCorr:       &minCorr,
			Version:       "dev",
			Error:         "correlations file not readable",
		})

		rec := serve(newHealthRouter(t, svc), http.MethodGet, "/api/health", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "2024-05-01T12:00:00Z", body["built_at"])
		assert.Equal(t, "v1", body["active_dataset"])
		assert.Equal(t, "correlations file not readable", body["error"])
	})
}

func TestHealthHandlerReadiness(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{"ready", http.StatusOK},
		{"not_ready", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			svc := &mockHealthService{}
			svc.On("ReadinessCheck", mock.Anything).Return(services.HealthStatus{Status: tt.status, Version: "dev"})

			rec := serve(newHealthRouter(t, svc), http.MethodGet, "/api/health/ready", "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.status, decodeBody(t, rec)["status"])
		})
	}
}

func TestHealthHandlerLivenessAndVersion(t *testing.T) {
	svc := &mockHealthService{}
	svc.On("LivenessCheck", mock.Anything).Return(services.HealthStatus{Status: "alive"})
	svc.On("Version").Return(map[string]interface{}{"version": "dev"})
	r := newHealthRouter(t, svc)

	rec := serve(r, http.MethodGet, "/api/health/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", decodeBody(t, rec)["status"])

	rec = serve(r, http.MethodGet, "/api/version", "")
	assert.Equal(t, "dev", decodeBody(t, rec)["version"])
	svc.AssertExpectations(t)
}
