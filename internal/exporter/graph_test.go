package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"portfoliograph/internal/shared/testutil"
	"portfoliograph/pkg/contracts/domain"
)

func floatPtr(f float64) *float64 { return &f }

func sampleBundle() *domain.GraphBundle {
	return &domain.GraphBundle{
		Nodes: []domain.Node{
			{ID: "alpha-capital", Label: "Alpha Capital", GrossNotional: 1500000, NetNotional: 500000, PositionsCount: 3,
				ProductMix: map[string]float64{"equity": 0.6, "future": 0.4}},
			{ID: "beta-partners", Label: "Beta Partners", GrossNotional: 2500000.5, NetNotional: -2500000.5, PositionsCount: 1,
				ProductMix: map[string]float64{"option": 1}},
			{ID: "gamma-fund", Label: "Gamma, Fund", GrossNotional: 10, NetNotional: 10, PositionsCount: 2,
				ProductMix: map[string]float64{"bond": 1}},
			{ID: "delta-llc", Label: "Delta LLC", PositionsCount: 1, ProductMix: map[string]float64{}},
		},
		Edges: []domain.Edge{
			{Source: "alpha-capital", Target: "beta-partners", Weight: 0.62, CorrPct: 62},
		},
		Meta: domain.GraphMeta{
			NumClients:             4,
			NumEdges:               1,
			CorrMinKept:            floatPtr(0.62),
			CorrMaxKept:            floatPtr(0.62),
			MinCorrUsed:            0.25,
			DroppedFromCorr:        []string{"omega-trust"},
			MissingCorrForHoldings: []string{"gamma-fund", "delta-llc"},
			CorrScale:              domain.CorrScaleFraction,
			SkippedNotionalRows:    1,
			SlugCollisions:         map[string][]string{"alpha-capital": {"Alpha Capital", "ALPHA capital"}},
		},
	}
}

func sampleInfo() SnapshotInfo {
	return SnapshotInfo{Dataset: "v1", BuiltAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC), MinCorr: 0.25}
}

func TestGraphExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	logger, logs := testutil.NewTestLogger(t)

	paths, err := NewGraphExporter(dir, logger).Export(sampleBundle(), sampleInfo())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, NodesFile),
		filepath.Join(dir, EdgesFile),
		filepath.Join(dir, WorkbookFile),
	}, paths)
	assert.True(t, logs.ContainsMessage("Graph exported"))

	nodes, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.False(t, bytes.HasPrefix(nodes, utf8BOM))
	assert.Equal(t,
		"id,label,gross_notional,net_notional,positions_count,product_mix\n"+
			"alpha-capital,Alpha Capital,1500000.00,500000.00,3,equity:0.6;future:0.4\n"+
			"beta-partners,Beta Partners,2500000.50,-2500000.50,1,option:1\n"+
			"gamma-fund,\"Gamma, Fund\",10.00,10.00,2,bond:1\n"+
			"delta-llc,Delta LLC,0.00,0.00,1,\n",
		string(nodes))

	edges, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "source,target,weight,corr_pct\nalpha-capital,beta-partners,0.62,62\n", string(edges))
}

func TestGraphExporter_WithBOM(t *testing.T) {
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)

	paths, err := NewGraphExporter(dir, logger, WithBOM(true)).Export(sampleBundle(), sampleInfo())
	require.NoError(t, err)

	for _, p := range paths[:2] {
		content, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(content, utf8BOM), p)
	}
}

func TestGraphExporter_Workbook(t *testing.T) {
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)

	path, err := NewGraphExporter(dir, logger).WriteWorkbook(sampleBundle(), sampleInfo())
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetNodes, SheetEdges, SheetMeta}, f.GetSheetList())

	nodeRows, err := f.GetRows(SheetNodes)
	require.NoError(t, err)
	require.Len(t, nodeRows, 5)
	assert.Equal(t, nodeHeaders, nodeRows[0])
	assert.Equal(t, "alpha-capital", nodeRows[1][0])
	assert.Equal(t, "1500000", nodeRows[1][2])
	assert.Equal(t, "Gamma, Fund", nodeRows[3][1])

	edgeRows, err := f.GetRows(SheetEdges)
	require.NoError(t, err)
	require.Len(t, edgeRows, 2)
	assert.Equal(t, []string{"alpha-capital", "beta-partners", "0.62", "62"}, edgeRows[1])

	metaRows, err := f.GetRows(SheetMeta)
	require.NoError(t, err)
	meta := make(map[string]string)
	for _, row := range metaRows[1:] {
		if len(row) == 2 {
			meta[row[0]] = row[1]
		} else {
			meta[row[0]] = ""
		}
	}
	assert.Equal(t, "v1", meta["dataset"])
	assert.Equal(t, "2024-05-01T09:30:00Z", meta["built_at"])
	assert.Equal(t, "0.25", meta["min_corr_used"])
	assert.Equal(t, "fraction", meta["corr_scale"])
	assert.Equal(t, "omega-trust", meta["dropped_from_corr"])
	assert.Equal(t, "gamma-fund, delta-llc", meta["missing_corr_for_holdings"])
	assert.Equal(t, "alpha-capital: Alpha Capital | ALPHA capital", meta["slug_collisions"])
}

func TestGraphExporter_EmptyGraph(t *testing.T) {
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)

	bundle := &domain.GraphBundle{Meta: domain.GraphMeta{CorrScale: domain.CorrScaleEmpty, MinCorrUsed: 0.25}}
	paths, err := NewGraphExporter(dir, logger).Export(bundle, SnapshotInfo{Dataset: "v0"})
	require.NoError(t, err)

	edges, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "source,target,weight,corr_pct\n", string(edges))
}

func TestGraphExporter_NilBundle(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	_, err := NewGraphExporter(t.TempDir(), logger).Export(nil, SnapshotInfo{})
	assert.Error(t, err)
}
