package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"portfoliograph/internal/config"
	apierrors "portfoliograph/internal/errors"
	"portfoliograph/internal/infrastructure"
	customMiddleware "portfoliograph/internal/middleware"
	"portfoliograph/internal/services"
	handlers "portfoliograph/internal/transport/http"
	ws "portfoliograph/internal/websocket"
	"portfoliograph/pkg/contracts"
	"portfoliograph/pkg/contracts/events"
)

// AppName is the name reported in startup logs.
const AppName = "Portfolio Graph"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebSocketHub  *ws.Hub
	GraphService  *services.GraphService
	HealthService *services.HealthService

	errorHandler *apierrors.ErrorHandler
}

// New creates the application, initializing the process-wide logger from
// cfg.Logging.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return NewWithLogger(cfg, logger)
}

// NewWithLogger creates the application with an injected logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		errorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the hub, the graph coordinator and health checks
func (a *Application) initializeServices() error {
	hubMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	graphMetrics, err := infrastructure.CreateGraphMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create graph metrics: %w", err)
	}

	a.WebSocketHub = ws.NewHub(a.Logger,
		ws.WithHubMetrics(hubMetrics),
		ws.WithClientConfig(ws.ClientConfigFrom(a.Config.WebSocket)),
		ws.WithStatus(a.connectionStatus),
	)

	a.GraphService = services.NewGraphService(
		services.GraphServiceConfigFrom(a.Config, a.Paths),
		a.Logger,
		services.WithPublisher(a.WebSocketHub),
		services.WithMetrics(graphMetrics),
		services.WithTracer(a.OTelProviders.Tracer),
	)

	a.HealthService = services.NewHealthService(
		contracts.Version,
		contracts.BuildTime,
		a.Paths.DatasetsFile,
		a.GraphService,
		a.WebSocketHub,
		a.Logger,
	)
	return nil
}

// connectionStatus is announced to every new event stream client.
func (a *Application) connectionStatus() events.ConnectionStatus {
	status := a.GraphService.Status()
	out := events.ConnectionStatus{BuiltAt: status.BuiltAt, Error: status.Error}
	if status.ActiveDataset != nil {
		out.ActiveDataset = *status.ActiveDataset
	}
	return out
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	// These don't wrap the ResponseWriter, so they are safe for the upgrade.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).
		Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Config.WebSocket, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Security → CORS → RateLimit → Timeout
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.errorHandler))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		handlers.NewGraphHandler(a.GraphService, a.Logger, a.errorHandler).RegisterRoutes(r)
	})
}

// getCORSConfig returns the CORS policy. The API is read-mostly and
// unauthenticated, so the default policy accepts any origin.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the event hub and builds the initial snapshot. A failed
// initial build is logged and reported through health; it does not stop
// the server from starting.
func (a *Application) Start(ctx context.Context) error {
	a.WebSocketHub.Start()

	if !a.Config.Graph.RebuildOnStart {
		return nil
	}

	start := time.Now()
	snap, err := a.GraphService.Rebuild(ctx, nil)
	if err != nil {
		a.Logger.WarnContext(ctx, "Initial graph build failed",
			slog.String("error", err.Error()),
			slog.String("datasets_file", a.Paths.DatasetsFile))
		return nil
	}

	a.Logger.InfoContext(ctx, "Initial graph built",
		slog.String("dataset", snap.Dataset),
		slog.Float64("min_corr", snap.MinCorr),
		slog.Int("nodes", len(snap.Bundle.Nodes)),
		slog.Int("edges", len(snap.Bundle.Edges)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.InfoContext(ctx, "HTTP server listening",
			slog.String("address", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("Shutdown requested")
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}
