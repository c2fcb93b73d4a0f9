package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "portfoliograph/internal/errors"
	"portfoliograph/internal/files"
	customMiddleware "portfoliograph/internal/middleware"
	"portfoliograph/internal/services"
	api "portfoliograph/pkg/contracts/api/v1"
)

// GraphHandler serves the graph, client and dataset endpoints
type GraphHandler struct {
	service      GraphServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validator    *customMiddleware.ValidationMiddleware
	query        *customMiddleware.QueryParamValidator
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(service GraphServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *GraphHandler {
	return &GraphHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "graph_handler")),
		errorHandler: errorHandler,
		validator:    customMiddleware.NewValidationMiddleware(logger, errorHandler),
		query:        customMiddleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// RegisterRoutes registers the graph routes on r
func (h *GraphHandler) RegisterRoutes(r chi.Router) {
	r.Get("/graph", h.GetGraph)
	r.Post("/graph/rebuild", h.RebuildGraph)
	r.Get("/client/{clientID}", h.GetClient)
	r.Get("/datasets", h.GetDatasets)
	r.Post("/dataset/select", h.SelectDataset)
}

// GetGraph handles GET /api/graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	minCorr, ok := h.query.ValidateOptionalFloat(w, r, "min_corr", 0)
	if !ok {
		return
	}

	snap, err := h.service.Graph(r.Context(), minCorr)
	if err != nil {
		h.fail(w, r, "failed to get graph", err)
		return
	}

	render.JSON(w, r, api.GraphResponse{
		Nodes: snap.Bundle.Nodes,
		Edges: snap.Bundle.Edges,
		Meta:  snap.Bundle.Meta,
	})
}

// RebuildGraph handles POST /api/graph/rebuild
func (h *GraphHandler) RebuildGraph(w http.ResponseWriter, r *http.Request) {
	var req api.RebuildGraphRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "graph rebuild requested",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("min_corr", req.MinCorr))

	snap, err := h.service.Rebuild(r.Context(), req.MinCorr)
	if err != nil {
		h.fail(w, r, "graph rebuild failed", err)
		return
	}

	render.JSON(w, r, api.RebuildResponse{
		Message:       "Graph rebuilt successfully",
		ActiveDataset: snap.Dataset,
		MinCorr:       snap.MinCorr,
		BuiltAt:       snap.BuiltAt,
		Meta:          snap.Bundle.Meta,
	})
}

// GetClient handles GET /api/client/{clientID}
func (h *GraphHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clientID")
	if id == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("clientID", "client id is required"))
		return
	}

	view, err := h.service.Client(id)
	if err != nil {
		h.fail(w, r, "failed to get client", err)
		return
	}

	render.JSON(w, r, api.ClientResponse{
		ClientDetail:  view.Detail,
		NeighborCount: len(view.Neighbors),
		Neighbors:     view.Neighbors,
	})
}

// GetDatasets handles GET /api/datasets
func (h *GraphHandler) GetDatasets(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Datasets()
	if err != nil {
		h.fail(w, r, "failed to list datasets", err)
		return
	}

	render.JSON(w, r, api.DatasetsResponse{
		ActiveDataset:     view.Active,
		AvailableDatasets: view.Versions,
		Datasets:          view.Descriptions,
	})
}

// SelectDataset handles POST /api/dataset/select
func (h *GraphHandler) SelectDataset(w http.ResponseWriter, r *http.Request) {
	var req api.SelectDatasetRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "dataset switch requested",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("dataset", req.Dataset))

	snap, err := h.service.SelectDataset(r.Context(), req.Dataset)
	if err != nil {
		h.fail(w, r, "dataset switch failed", err)
		return
	}

	render.JSON(w, r, api.SelectDatasetResponse{
		Message:       fmt.Sprintf("Switched to dataset %s", snap.Dataset),
		ActiveDataset: snap.Dataset,
		Meta:          snap.Bundle.Meta,
	})
}

func (h *GraphHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	mapped := mapServiceError(err)

	level := slog.LevelError
	var apiErr *apierrors.APIError
	if errors.As(mapped, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, msg,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	h.errorHandler.HandleError(w, r, mapped)
}

// mapServiceError converts service errors to API errors. Load failures and
// context errors pass through unchanged; the error handler has dedicated
// problem types for them.
func mapServiceError(err error) error {
	var clientErr *services.ClientNotFoundError
	if errors.As(err, &clientErr) {
		return apierrors.NotFoundWithAvailable(apierrors.CodeClientNotFound, "client", clientErr.ID, clientErr.Available, clientErr.More, err)
	}

	var datasetErr *files.UnknownDatasetError
	if errors.As(err, &datasetErr) {
		return apierrors.NotFoundWithAvailable(apierrors.CodeDatasetNotFound, "dataset", datasetErr.Version, datasetErr.Available, false, err)
	}

	switch {
	case errors.Is(err, services.ErrInvalidThreshold):
		return apierrors.ErrValidation("min_corr", "min_corr must be a non-negative number")
	case errors.Is(err, services.ErrGraphUnavailable):
		return apierrors.GraphUnavailable(nil).WithCause(err)
	case errors.Is(err, services.ErrRegistryNotFound), errors.Is(err, services.ErrNoActiveDataset):
		return apierrors.New(http.StatusServiceUnavailable, apierrors.CodeServiceUnavailable, err.Error()).WithCause(err)
	}
	return err
}
