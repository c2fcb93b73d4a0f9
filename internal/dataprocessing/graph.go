package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"portfoliograph/pkg/contracts/domain"
)

// BuildGraph loads both tables and assembles the graph at threshold
// minCorr. It fails only with a *FileError or a *SchemaError; on failure no
// partial bundle is returned.
func BuildGraph(holdingsPath, corrPath string, minCorr float64) (*domain.GraphBundle, error) {
	return BuildGraphContext(context.Background(), holdingsPath, corrPath, minCorr)
}

// BuildGraphContext is BuildGraph with cancellation, checked between
// steps. Holdings load first, so a holdings error is reported before any
// matrix error.
func BuildGraphContext(ctx context.Context, holdingsPath, corrPath string, minCorr float64) (*domain.GraphBundle, error) {
	holdings, err := LoadHoldings(holdingsPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matrix, err := LoadCorrelations(corrPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle := Assemble(holdings, matrix, minCorr)
	slog.DebugContext(ctx, "Graph assembled",
		slog.String("holdings", holdingsPath),
		slog.String("correlations", corrPath),
		slog.Float64("min_corr", minCorr),
		slog.Int("nodes", bundle.Meta.NumClients),
		slog.Int("edges", bundle.Meta.NumEdges),
		slog.String("corr_scale", string(bundle.Meta.CorrScale)))
	return bundle, nil
}

// Assemble combines loaded tables into a graph bundle. It is deterministic:
// nodes follow first appearance in holdings and edges are sorted by
// (source, target).
func Assemble(holdings *HoldingsTable, matrix *CorrelationMatrix, minCorr float64) *domain.GraphBundle {
	clients := AggregateClients(holdings.Positions)
	norm := NormalizeCorrelations(matrix)
	rec := Reconcile(clients.Order, matrix.Labels)

	nodes := make([]domain.Node, 0, len(clients.Order))
	for _, id := range clients.Order {
		d := clients.Details[id]
		nodes = append(nodes, domain.Node{
			ID:             d.ID,
			Label:          d.Name,
			GrossNotional:  d.Aggregates.GrossNotional,
			NetNotional:    d.Aggregates.NetNotional,
			PositionsCount: d.Aggregates.PositionsCount,
			ProductMix:     d.Aggregates.ProductMix,
		})
	}

	edges := []domain.Edge{}
	for _, p := range norm.Pairs {
		if !rec.Eligible(p.Source, p.Target) || p.Weight < minCorr {
			continue
		}
		edges = append(edges, domain.Edge{Source: p.Source, Target: p.Target, Weight: p.Weight, CorrPct: p.CorrPct})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	meta := domain.GraphMeta{
		NumClients:             len(nodes),
		NumEdges:               len(edges),
		MinCorrUsed:            minCorr,
		DroppedFromCorr:        rec.DroppedFromCorr,
		MissingCorrForHoldings: rec.MissingCorrForHoldings,
		CorrScale:              norm.Scale,
		InvalidCorrCells:       norm.InvalidCells,
		AsymmetricPairs:        norm.AsymmetricPairs,
		SkippedNotionalRows:    clients.SkippedNotionalRows,
		UnidentifiedRows:       clients.UnidentifiedRows,
	}
	if len(clients.Collisions) > 0 {
		meta.SlugCollisions = clients.Collisions
	}
	if len(edges) > 0 {
		lo, hi := edges[0].Weight, edges[0].Weight
		for _, e := range edges[1:] {
			if e.Weight < lo {
				lo = e.Weight
			}
			if e.Weight > hi {
				hi = e.Weight
			}
		}
		meta.CorrMinKept, meta.CorrMaxKept = &lo, &hi
	}

	return &domain.GraphBundle{
		Nodes:         nodes,
		Edges:         edges,
		ClientDetails: clients.Details,
		Meta:          meta,
	}
}
