// Package api contains the request and response contracts of the portfolio
// graph REST API. Version v1 is the current stable API version.
package api

import (
	"encoding/json"
	"time"

	"portfoliograph/pkg/contracts/domain"
)

// RebuildGraphRequest asks for a rebuild of the active dataset. A missing
// min_corr keeps the current threshold.
type RebuildGraphRequest struct {
	MinCorr *float64 `json:"min_corr,omitempty" validate:"omitempty,gte=0"`
}

// SelectDatasetRequest switches the active dataset version. The dataset
// rule rejects names that are not a single path element.
type SelectDatasetRequest struct {
	Dataset string `json:"dataset" validate:"required,max=128,dataset"`
}

// GraphQuery holds the query parameters of GET /graph.
type GraphQuery struct {
	MinCorr *float64 `query:"min_corr" validate:"omitempty,gte=0"`
}

// GraphResponse is the body of GET /graph.
type GraphResponse struct {
	Nodes []domain.Node    `json:"nodes"`
	Edges []domain.Edge    `json:"edges"`
	Meta  domain.GraphMeta `json:"meta"`
}

// RebuildResponse is the body of POST /graph/rebuild.
type RebuildResponse struct {
	Message       string           `json:"message"`
	ActiveDataset string           `json:"active_dataset"`
	MinCorr       float64          `json:"min_corr"`
	BuiltAt       time.Time        `json:"built_at"`
	Meta          domain.GraphMeta `json:"meta"`
}

// SelectDatasetResponse is the body of POST /dataset/select.
type SelectDatasetResponse struct {
	Message       string           `json:"message"`
	ActiveDataset string           `json:"active_dataset"`
	Meta          domain.GraphMeta `json:"meta"`
}

// DatasetsResponse is the body of GET /datasets.
type DatasetsResponse struct {
	ActiveDataset     string                     `json:"active_dataset"`
	AvailableDatasets []string                   `json:"available_datasets"`
	Datasets          map[string]json.RawMessage `json:"datasets"`
}

// ClientResponse is the body of GET /client/{id}.
type ClientResponse struct {
	domain.ClientDetail
	NeighborCount int               `json:"neighbor_count"`
	Neighbors     []domain.Neighbor `json:"neighbors"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string     `json:"status"`
	BuiltAt       *time.Time `json:"built_at"`
	ActiveDataset *string    `json:"active_dataset"`
	MinCorr       *float64   `json:"min_corr,omitempty"`
	Version       string     `json:"version"`
	Error         string     `json:"error,omitempty"`
}
