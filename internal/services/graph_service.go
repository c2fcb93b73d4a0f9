package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"portfoliograph/internal/config"
	"portfoliograph/internal/dataprocessing"
	"portfoliograph/internal/files"
	"portfoliograph/internal/infrastructure"
	"portfoliograph/pkg/contracts/domain"
	"portfoliograph/pkg/contracts/events"
)

// Snapshot is one published graph. It is never modified after publication.
type Snapshot struct {
	Dataset string
	MinCorr float64
	BuiltAt time.Time
	Bundle  *domain.GraphBundle
	Version uint64
}

// BuildFunc builds a graph bundle from the two table files.
type BuildFunc func(ctx context.Context, holdingsPath, corrPath string, minCorr float64) (*domain.GraphBundle, error)

// EventPublisher receives graph lifecycle events.
type EventPublisher interface {
	Broadcast(msg events.Message)
}

// GraphServiceConfig locates the registry and dataset files.
type GraphServiceConfig struct {
	RegistryPath   string
	DataDir        string
	Files          files.FileNames
	DefaultMinCorr float64
	BuildTimeout   time.Duration
}

// GraphServiceConfigFrom derives the service configuration from the
// application configuration and its resolved paths.
func GraphServiceConfigFrom(cfg *config.Config, paths *config.Paths) GraphServiceConfig {
	names := files.DefaultFileNames()
	if cfg.Graph.HoldingsFile != "" {
		names.Holdings = cfg.Graph.HoldingsFile
	}
	if cfg.Graph.CorrelationsFile != "" {
		names.Correlations = cfg.Graph.CorrelationsFile
	}
	return GraphServiceConfig{
		RegistryPath:   paths.DatasetsFile,
		DataDir:        paths.DataDir,
		Files:          names,
		DefaultMinCorr: cfg.Graph.DefaultMinCorr,
		BuildTimeout:   cfg.Graph.BuildTimeout,
	}
}

// GraphStatus summarises the coordinator state for health reporting.
type GraphStatus struct {
	BuiltAt       *time.Time
	ActiveDataset *string
	MinCorr       *float64
	Version       uint64
	Error         string
	ErrorAt       *time.Time
}

// ClientView is a client detail together with its neighbours in the
// published graph.
type ClientView struct {
	Detail    domain.ClientDetail
	Neighbors []domain.Neighbor
}

// DatasetsView lists the registered datasets.
type DatasetsView struct {
	Active       string
	Versions     []string
	Descriptions map[string]json.RawMessage
}

// GraphServiceOption configures a GraphService.
type GraphServiceOption func(*GraphService)

// WithPublisher sets the event publisher.
func WithPublisher(p EventPublisher) GraphServiceOption {
	return func(s *GraphService) { s.publisher = p }
}

// WithMetrics sets the build instruments.
func WithMetrics(m *infrastructure.GraphMetrics) GraphServiceOption {
	return func(s *GraphService) { s.metrics = m }
}

// WithTracer sets the tracer used for build spans.
func WithTracer(t trace.Tracer) GraphServiceOption {
	return func(s *GraphService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithBuilder replaces the graph builder.
func WithBuilder(b BuildFunc) GraphServiceOption {
	return func(s *GraphService) {
		if b != nil {
			s.build = b
		}
	}
}

// GraphService owns the published graph snapshot. Reads are lock-free;
// builds and registry writes are serialised.
type GraphService struct {
	cfg       GraphServiceConfig
	logger    *slog.Logger
	build     BuildFunc
	publisher EventPublisher
	metrics   *infrastructure.GraphMetrics
	tracer    trace.Tracer

	snapshot atomic.Pointer[Snapshot]
	mu       sync.Mutex
	flight   singleflight.Group

	statusMu    sync.RWMutex
	lastError   string
	lastErrorAt time.Time
}

// NewGraphService creates a graph service. No graph is built until the
// first Rebuild, Graph or SelectDataset call.
func NewGraphService(cfg GraphServiceConfig, logger *slog.Logger, opts ...GraphServiceOption) *GraphService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Files.Holdings == "" || cfg.Files.Correlations == "" {
		defaults := files.DefaultFileNames()
		if cfg.Files.Holdings == "" {
			cfg.Files.Holdings = defaults.Holdings
		}
		if cfg.Files.Correlations == "" {
			cfg.Files.Correlations = defaults.Correlations
		}
	}

	s := &GraphService{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "graph_service")),
		build:  dataprocessing.BuildGraphContext,
		tracer: otel.Tracer(infrastructure.InstrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("GraphService initialized",
		slog.String("registry", cfg.RegistryPath),
		slog.String("data_dir", cfg.DataDir),
		slog.Float64("default_min_corr", cfg.DefaultMinCorr))
	return s
}

// Current returns the published snapshot or nil.
func (s *GraphService) Current() *Snapshot {
	return s.snapshot.Load()
}

// Rebuild rebuilds the active dataset. A nil minCorr keeps the current
// threshold, falling back to the configured default.
func (s *GraphService) Rebuild(ctx context.Context, minCorr *float64) (*Snapshot, error) {
	if minCorr != nil {
		if err := validThreshold(*minCorr); err != nil {
			return nil, err
		}
	}

	key := "rebuild|" + thresholdKey(minCorr)
	return s.do(ctx, key, func(ctx context.Context) (*Snapshot, error) {
		return s.buildAndPublish(ctx, buildRequest{minCorr: minCorr})
	})
}

// Graph returns the published snapshot. It rebuilds first when nothing is
// published yet or when minCorr differs from the published threshold.
func (s *GraphService) Graph(ctx context.Context, minCorr *float64) (*Snapshot, error) {
	if minCorr != nil {
		if err := validThreshold(*minCorr); err != nil {
			return nil, err
		}
	}

	if snap := s.snapshot.Load(); snap != nil && (minCorr == nil || *minCorr == snap.MinCorr) {
		s.metrics.RecordCacheHit(ctx)
		return snap, nil
	}

	key := "graph|" + thresholdKey(minCorr)
	return s.do(ctx, key, func(ctx context.Context) (*Snapshot, error) {
		return s.buildAndPublish(ctx, buildRequest{minCorr: minCorr, reuse: true})
	})
}

// Client returns the detail and neighbours of id in the published graph.
func (s *GraphService) Client(id string) (*ClientView, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, ErrGraphUnavailable
	}

	detail, ok := snap.Bundle.ClientDetails[id]
	if !ok {
		return nil, newClientNotFound(id, snap.Bundle.ClientIDs())
	}
	return &ClientView{Detail: detail, Neighbors: snap.Bundle.Neighbors(id)}, nil
}

// Datasets lists the registry contents.
func (s *GraphService) Datasets() (*DatasetsView, error) {
	reg, err := files.LoadRegistry(s.cfg.RegistryPath)
	if err != nil {
		return nil, err
	}

	view := &DatasetsView{Versions: reg.Versions(), Descriptions: reg.Descriptions()}
	if active, err := reg.Active(); err == nil {
		view.Active = active
	}
	return view, nil
}

// SelectDataset builds version at the current threshold and, only when the
// build succeeds, persists it as the active dataset and publishes it.
func (s *GraphService) SelectDataset(ctx context.Context, version string) (*Snapshot, error) {
	reg, err := files.LoadRegistry(s.cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	if !reg.Has(version) {
		return nil, &files.UnknownDatasetError{Version: version, Available: reg.Versions()}
	}

	key := "select|" + version
	return s.do(ctx, key, func(ctx context.Context) (*Snapshot, error) {
		return s.buildAndPublish(ctx, buildRequest{dataset: version, selecting: true})
	})
}

// Status reports the published snapshot and the last build error.
func (s *GraphService) Status() GraphStatus {
	var st GraphStatus
	if snap := s.snapshot.Load(); snap != nil {
		builtAt, dataset, minCorr := snap.BuiltAt, snap.Dataset, snap.MinCorr
		st.BuiltAt = &builtAt
		st.ActiveDataset = &dataset
		st.MinCorr = &minCorr
		st.Version = snap.Version
	}

	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	if s.lastError != "" {
		at := s.lastErrorAt
		st.Error = s.lastError
		st.ErrorAt = &at
	}
	return st
}

// do runs fn once per key among concurrent callers. The shared build is
// detached from the caller's cancellation and bounded by BuildTimeout; a
// caller that gives up receives its own context error.
func (s *GraphService) do(ctx context.Context, key string, fn func(context.Context) (*Snapshot, error)) (*Snapshot, error) {
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		buildCtx := context.WithoutCancel(ctx)
		if s.cfg.BuildTimeout > 0 {
			var cancel context.CancelFunc
			buildCtx, cancel = context.WithTimeout(buildCtx, s.cfg.BuildTimeout)
			defer cancel()
		}
		return fn(buildCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.DebugContext(ctx, "Joined in-flight graph build", slog.String("key", key))
		}
		return res.Val.(*Snapshot), nil
	}
}

// buildRequest describes a write. The registry, the dataset and a nil
// threshold are resolved only once the writer lock is held, so a build
// queued behind a dataset switch follows the switch.
type buildRequest struct {
	// dataset is the version to select; empty means the active dataset.
	dataset   string
	minCorr   *float64
	selecting bool
	// reuse returns the published snapshot when it already matches.
	reuse bool
}

// buildAndPublish is the single writer. It builds the requested dataset and
// publishes the result; a failed build leaves the published snapshot as is.
func (s *GraphService) buildAndPublish(ctx context.Context, req buildRequest) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold, err := s.threshold(req.minCorr)
	if err != nil {
		return nil, err
	}
	reg, dataset, err := s.resolveDataset(req)
	if err != nil {
		s.recordFailure(ctx, req.dataset, threshold, err)
		return nil, err
	}
	if req.reuse {
		if snap := s.snapshot.Load(); snap != nil && snap.Dataset == dataset && snap.MinCorr == threshold {
			return snap, nil
		}
	}

	ctx, span := s.tracer.Start(ctx, "graph.build",
		trace.WithAttributes(
			attribute.String("dataset", dataset),
			attribute.Float64("min_corr", threshold),
			attribute.Bool("select", req.selecting),
		))
	defer span.End()

	start := time.Now()
	bundle, err := s.buildDataset(ctx, reg, dataset, threshold)
	if err == nil && req.selecting {
		err = reg.Select(dataset)
	}
	duration := time.Since(start)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordBuild(ctx, dataset, duration, 0, 0, err)
		s.recordFailure(ctx, dataset, threshold, err)
		return nil, err
	}

	previous := s.snapshot.Load()
	snap := &Snapshot{
		Dataset: dataset,
		MinCorr: threshold,
		BuiltAt: time.Now().UTC(),
		Bundle:  bundle,
		Version: 1,
	}
	if previous != nil {
		snap.Version = previous.Version + 1
	}
	s.snapshot.Store(snap)
	s.clearFailure()

	span.SetAttributes(
		attribute.Int("nodes", bundle.Meta.NumClients),
		attribute.Int("edges", bundle.Meta.NumEdges),
		attribute.Int64("snapshot_version", int64(snap.Version)),
	)
	s.metrics.RecordBuild(ctx, dataset, duration, bundle.Meta.NumClients, bundle.Meta.NumEdges, nil)

	s.logger.InfoContext(ctx, "Graph published",
		slog.String("dataset", dataset),
		slog.Float64("min_corr", threshold),
		slog.Int("nodes", bundle.Meta.NumClients),
		slog.Int("edges", bundle.Meta.NumEdges),
		slog.Uint64("snapshot_version", snap.Version),
		slog.Duration("duration", duration))

	payload := events.GraphRebuilt{
		Dataset:    snap.Dataset,
		MinCorr:    snap.MinCorr,
		BuiltAt:    snap.BuiltAt,
		Version:    snap.Version,
		NumClients: bundle.Meta.NumClients,
		NumEdges:   bundle.Meta.NumEdges,
	}
	msgType := events.MessageTypeGraphRebuilt
	if req.selecting {
		msgType = events.MessageTypeDatasetSwitched
		if previous != nil {
			payload.Previous = previous.Dataset
		}
	}
	s.publish(ctx, msgType, payload)
	return snap, nil
}

func (s *GraphService) buildDataset(ctx context.Context, reg *files.Registry, dataset string, threshold float64) (*domain.GraphBundle, error) {
	paths, err := reg.ResolvePaths(s.cfg.DataDir, dataset, s.cfg.Files)
	if err != nil {
		return nil, err
	}
	bundle, err := s.build(ctx, paths.Holdings, paths.Correlations, threshold)
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// resolveDataset reads the registry and picks the dataset a request builds.
// Callers hold s.mu.
func (s *GraphService) resolveDataset(req buildRequest) (*files.Registry, string, error) {
	reg, err := files.LoadRegistry(s.cfg.RegistryPath)
	if err != nil {
		return nil, "", err
	}
	if req.selecting {
		if !reg.Has(req.dataset) {
			return nil, "", &files.UnknownDatasetError{Version: req.dataset, Available: reg.Versions()}
		}
		return reg, req.dataset, nil
	}
	dataset, err := reg.Active()
	if err != nil {
		return nil, "", err
	}
	return reg, dataset, nil
}

// threshold resolves an optional threshold. An explicit zero is kept.
func (s *GraphService) threshold(minCorr *float64) (float64, error) {
	if minCorr != nil {
		if err := validThreshold(*minCorr); err != nil {
			return 0, err
		}
		return *minCorr, nil
	}
	if snap := s.snapshot.Load(); snap != nil {
		return snap.MinCorr, nil
	}
	return s.cfg.DefaultMinCorr, nil
}

func validThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, v)
	}
	return nil
}

func (s *GraphService) recordFailure(ctx context.Context, dataset string, threshold float64, err error) {
	s.statusMu.Lock()
	s.lastError = err.Error()
	s.lastErrorAt = time.Now().UTC()
	s.statusMu.Unlock()

	s.logger.ErrorContext(ctx, "Graph build failed",
		slog.String("dataset", dataset),
		slog.Float64("min_corr", threshold),
		slog.String("error", err.Error()))

	s.publish(ctx, events.MessageTypeGraphError, events.GraphError{
		Dataset: dataset,
		MinCorr: threshold,
		Error:   err.Error(),
	})
}

func (s *GraphService) clearFailure() {
	s.statusMu.Lock()
	s.lastError = ""
	s.lastErrorAt = time.Time{}
	s.statusMu.Unlock()
}

func (s *GraphService) publish(ctx context.Context, t events.MessageType, data interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Broadcast(events.NewMessage(t, traceID(ctx), data))
}

func traceID(ctx context.Context) string {
	if id := infrastructure.TraceIDFromContext(ctx); id != "" {
		return id
	}
	return infrastructure.GetTraceID(ctx)
}

// thresholdKey names an optional threshold for request collapsing.
func thresholdKey(minCorr *float64) string {
	if minCorr == nil {
		return "current"
	}
	return strconv.FormatFloat(*minCorr, 'g', -1, 64)
}
