package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	api "portfoliograph/pkg/contracts/api/v1"
)

// GraphStatusProvider reports the state of the published graph.
type GraphStatusProvider interface {
	Status() GraphStatus
}

// ClientCounter reports connected event stream clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version      string
	buildTime    string
	registryPath string
	graph        GraphStatusProvider
	hub          ClientCounter
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus represents the readiness and liveness responses
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual component health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a new health service. hub may be nil.
func NewHealthService(version, buildTime, registryPath string, graph GraphStatusProvider, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("registry", registryPath))

	return &HealthService{
		version:      version,
		buildTime:    buildTime,
		registryPath: registryPath,
		graph:        graph,
		hub:          hub,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck reports the published graph. The status is always "ok"; a
// failed last build shows up in Error.
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	st := hs.graph.Status()
	resp := api.HealthResponse{
		Status:        "ok",
		BuiltAt:       st.BuiltAt,
		ActiveDataset: st.ActiveDataset,
		MinCorr:       st.MinCorr,
		Version:       hs.version,
		Error:         st.Error,
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.Bool("graph_built", st.BuiltAt != nil),
		slog.String("error", st.Error))
	return resp
}

// ReadinessCheck is ready once a graph has been published.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"graph":     hs.checkGraphHealth(),
			"registry":  hs.checkRegistryHealth(),
			"websocket": hs.checkWebSocketHealth(),
		},
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "ReadinessCheck: not ready",
			slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkGraphHealth() ServiceHealth {
	st := hs.graph.Status()
	if st.BuiltAt == nil {
		msg := "graph not built"
		if st.Error != "" {
			msg = fmt.Sprintf("graph not built: %s", st.Error)
		}
		return ServiceHealth{Status: "not_ready", Message: msg}
	}

	sh := ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("dataset %s at min_corr %g", *st.ActiveDataset, *st.MinCorr),
		Uptime:  time.Since(*st.BuiltAt).Round(time.Second).String(),
	}
	if st.Error != "" {
		sh.Message += "; last rebuild failed: " + st.Error
	}
	return sh
}

func (hs *HealthService) checkRegistryHealth() ServiceHealth {
	if _, err := os.Stat(hs.registryPath); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("dataset registry unavailable: %v", err),
		}
	}
	return ServiceHealth{Status: "ready", Message: "dataset registry is readable"}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "ready", Message: "event stream disabled"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).Round(time.Second).String(),
	}
}
