package http

import (
	"context"

	"portfoliograph/internal/services"
	api "portfoliograph/pkg/contracts/api/v1"
)

// GraphServiceInterface defines the interface for graph operations
type GraphServiceInterface interface {
	Graph(ctx context.Context, minCorr *float64) (*services.Snapshot, error)
	Rebuild(ctx context.Context, minCorr *float64) (*services.Snapshot, error)
	Client(id string) (*services.ClientView, error)
	Datasets() (*services.DatasetsView, error)
	SelectDataset(ctx context.Context, version string) (*services.Snapshot, error)
}

// HealthServiceInterface defines the interface for health reporting
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) api.HealthResponse
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
	Version() map[string]interface{}
}
