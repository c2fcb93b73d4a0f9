package dataprocessing

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliograph/pkg/contracts/domain"
)

type fixture struct {
	holdings string
	corr     string
}

func newFixture(t *testing.T, holdings []string, corr []string) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		holdings: writeFile(t, dir, "holdings.csv", append([]string{holdingsHeader}, holdings...)...),
		corr:     writeFile(t, dir, "correlations.csv", corr...),
	}
}

// richFixture covers partial overlap, percentages, collisions and bad cells.
func richFixture(t *testing.T) fixture {
	return newFixture(t,
		[]string{
			"Citadel,AAPL,EQUITY,100,190,19000",
			"Two Sigma,ESZ4,RATES_FUTURE,-3,5000,-15000",
			"Citadel,SPX 5000C,OPTION,5,200,1000",
			"Bridgewater Associates,TY,RATES_FUTURE,10,110,1100",
			"Millennium,CL,COMMODITY_FUTURE,2,70,",
			"D. E. Shaw & Co.,MSFT,EQUITY,-20,400,-8000",
		},
		[]string{
			",Two Sigma,Citadel,Bridgewater Associates,D. E. Shaw & Co.,Renaissance",
			"Two Sigma,100,62,18,41,77",
			"Citadel,62,100,35,90,12",
			"Bridgewater Associates,18,35,100,,55",
			"D. E. Shaw & Co.,41,90,25,100,30",
			"Renaissance,77,12,55,30,100",
		},
	)
}

func TestBuildGraphScenarioFractional(t *testing.T) {
	f := newFixture(t,
		[]string{
			"A,X1,EQUITY,1,10,10",
			"B,X2,OPTION,1,10,20",
			"C,X3,EQUITY,1,10,30",
		},
		[]string{
			",A,B,D",
			"A,1,0.49,0.8",
			"B,0.49,1,0.1",
			"D,0.8,0.1,1",
		},
	)

	bundle, err := BuildGraph(f.holdings, f.corr, 0.25)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, bundle.ClientIDs())
	require.Len(t, bundle.Edges, 1)
	assert.Equal(t, domain.Edge{Source: "a", Target: "b", Weight: 0.49, CorrPct: 49.0}, bundle.Edges[0])

	assert.Equal(t, []string{"D"}, bundle.Meta.DroppedFromCorr)
	assert.Equal(t, []string{"c"}, bundle.Meta.MissingCorrForHoldings)
	assert.Equal(t, 3, bundle.Meta.NumClients)
	assert.Equal(t, 1, bundle.Meta.NumEdges)
	assert.Equal(t, 0.25, bundle.Meta.MinCorrUsed)
	require.NotNil(t, bundle.Meta.CorrMinKept)
	assert.Equal(t, 0.49, *bundle.Meta.CorrMinKept)
	assert.Equal(t, 0.49, *bundle.Meta.CorrMaxKept)
	assert.Equal(t, domain.CorrScaleFraction, bundle.Meta.CorrScale)
}

func TestBuildGraphScenarioPercent(t *testing.T) {
	f := newFixture(t,
		[]string{"A,X1,EQUITY,1,10,10", "B,X2,EQUITY,1,10,10"},
		[]string{",A,B", "A,100,80", "B,80,100"},
	)

	bundle, err := BuildGraph(f.holdings, f.corr, 0.25)
	require.NoError(t, err)
	require.Len(t, bundle.Edges, 1)
	assert.InDelta(t, 0.80, bundle.Edges[0].Weight, 1e-12)
	assert.InDelta(t, 80.0, bundle.Edges[0].CorrPct, 1e-12)
	assert.Equal(t, domain.CorrScalePercent, bundle.Meta.CorrScale)
}

func TestBuildGraphGrossNet(t *testing.T) {
	f := newFixture(t,
		[]string{"A,X1,EQUITY,1,100,100", "A,X2,EQUITY,-1,40,-40"},
		[]string{",A", "A,1"},
	)

	bundle, err := BuildGraph(f.holdings, f.corr, 0.25)
	require.NoError(t, err)
	require.Len(t, bundle.Nodes, 1)
	assert.Equal(t, 140.0, bundle.Nodes[0].GrossNotional)
	assert.Equal(t, 60.0, bundle.Nodes[0].NetNotional)
	assert.Equal(t, 2, bundle.Nodes[0].PositionsCount)
	assert.Empty(t, bundle.Edges)
	assert.Nil(t, bundle.Meta.CorrMinKept)
	assert.Nil(t, bundle.Meta.CorrMaxKept)
}

func TestBuildGraphRich(t *testing.T) {
	f := richFixture(t)

	bundle, err := BuildGraph(f.holdings, f.corr, 0.25)
	require.NoError(t, err)

	assert.Equal(t, []string{"citadel", "two-sigma", "bridgewater-associates", "millennium", "d-e-shaw-co"}, bundle.ClientIDs())
	assert.Equal(t, "D. E. Shaw & Co.", bundle.Nodes[4].Label)

	var pairs [][2]string
	for _, e := range bundle.Edges {
		pairs = append(pairs, [2]string{e.Source, e.Target})
	}
	assert.Equal(t, [][2]string{
		{"bridgewater-associates", "citadel"},
		{"citadel", "d-e-shaw-co"},
		{"citadel", "two-sigma"},
		{"d-e-shaw-co", "two-sigma"},
	}, pairs)

	assert.Equal(t, []string{"Renaissance"}, bundle.Meta.DroppedFromCorr)
	assert.Equal(t, []string{"millennium"}, bundle.Meta.MissingCorrForHoldings)
	assert.Equal(t, 1, bundle.Meta.InvalidCorrCells)
	assert.Equal(t, 0, bundle.Meta.AsymmetricPairs)
	assert.Equal(t, 1, bundle.Meta.SkippedNotionalRows)

	millennium := bundle.ClientDetails["millennium"]
	assert.Equal(t, 1, millennium.Aggregates.PositionsCount)
	assert.Empty(t, millennium.Aggregates.ProductMix)

	citadel := bundle.ClientDetails["citadel"]
	assert.Len(t, citadel.Positions, 2)
	assert.InDelta(t, 19000.0/20000.0, citadel.Aggregates.ProductMix["EQUITY"], 1e-12)
}

func TestBuildGraphProperties(t *testing.T) {
	f := richFixture(t)

	for _, threshold := range []float64{0, 0.1, 0.25, 0.5, 0.9, 1, 1.5} {
		bundle, err := BuildGraph(f.holdings, f.corr, threshold)
		require.NoError(t, err)

		nodes := make(map[string]bool)
		for _, n := range bundle.Nodes {
			nodes[n.ID] = true
			var sum float64
			for _, share := range n.ProductMix {
				sum += share
			}
			assert.True(t, sum == 0 || math.Abs(sum-1) < 1e-9, "product mix of %s sums to %v", n.ID, sum)
		}

		degree := make(map[string]int)
		for _, e := range bundle.Edges {
			assert.GreaterOrEqual(t, e.Weight, 0.0)
			assert.LessOrEqual(t, e.Weight, 1.0)
			assert.GreaterOrEqual(t, e.Weight, threshold)
			assert.InDelta(t, e.Weight*100, e.CorrPct, 1e-6)
			assert.Less(t, e.Source, e.Target)
			assert.True(t, nodes[e.Source] && nodes[e.Target], "edge %s-%s has a dangling endpoint", e.Source, e.Target)
			degree[e.Source]++
			degree[e.Target]++
		}

		for _, name := range bundle.Meta.DroppedFromCorr {
			assert.False(t, nodes[Slugify(name)], "dropped %q is a node", name)
		}
		for _, id := range bundle.Meta.MissingCorrForHoldings {
			assert.True(t, nodes[id])
			assert.Zero(t, degree[id])
		}
	}
}

func TestBuildGraphMonotonic(t *testing.T) {
	f := richFixture(t)

	prev := math.MaxInt
	for _, threshold := range []float64{0, 0.2, 0.25, 0.4, 0.62, 0.9, 1} {
		bundle, err := BuildGraph(f.holdings, f.corr, threshold)
		require.NoError(t, err)
		assert.LessOrEqual(t, bundle.Meta.NumEdges, prev, "threshold %v", threshold)
		prev = bundle.Meta.NumEdges
	}

	low, err := BuildGraph(f.holdings, f.corr, 0.25)
	require.NoError(t, err)
	high, err := BuildGraph(f.holdings, f.corr, 0.9)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(high.Edges), len(low.Edges))
}

func TestBuildGraphIdempotent(t *testing.T) {
	f := richFixture(t)

	first, err := BuildGraph(f.holdings, f.corr, 0.3)
	require.NoError(t, err)
	second, err := BuildGraph(f.holdings, f.corr, 0.3)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestBuildGraphCollisionMerges(t *testing.T) {
	f := newFixture(t,
		[]string{"Alpha Fund,X,EQUITY,1,1,10", "ALPHA-FUND,Y,OPTION,1,1,30", "Beta,Z,EQUITY,1,1,5"},
		[]string{",alpha fund,Beta", "alpha fund,1,0.5", "Beta,0.5,1"},
	)

	bundle, err := BuildGraph(f.holdings, f.corr, 0.25)
	require.NoError(t, err)
	require.Len(t, bundle.Nodes, 2)
	assert.Equal(t, 40.0, bundle.Nodes[0].GrossNotional)
	assert.Equal(t, map[string][]string{"alpha-fund": {"Alpha Fund", "ALPHA-FUND"}}, bundle.Meta.SlugCollisions)
	require.Len(t, bundle.Edges, 1)
	assert.Equal(t, "alpha-fund", bundle.Edges[0].Source)
}

func TestBuildGraphEmptyMatrix(t *testing.T) {
	f := newFixture(t, []string{"A,X,EQUITY,1,1,1", "B,Y,EQUITY,1,1,1"}, nil)

	bundle, err := BuildGraph(f.holdings, f.corr, 0.25)
	require.NoError(t, err)
	assert.Len(t, bundle.Nodes, 2)
	assert.Empty(t, bundle.Edges)
	assert.Equal(t, []string{"a", "b"}, bundle.Meta.MissingCorrForHoldings)
	assert.Empty(t, bundle.Meta.DroppedFromCorr)
	assert.Equal(t, domain.CorrScaleEmpty, bundle.Meta.CorrScale)
}

func TestBuildGraphErrors(t *testing.T) {
	f := richFixture(t)
	missing := filepath.Join(t.TempDir(), "missing.csv")

	_, err := BuildGraph(missing, f.corr, 0.25)
	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindHoldings, fe.Kind)

	_, err = BuildGraph(f.holdings, missing, 0.25)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindCorrelations, fe.Kind)

	bad := newFixture(t, nil, []string{",A,B", "A,1,0.5"})
	bundle, err := BuildGraph(bad.holdings, bad.corr, 0.25)
	assert.Nil(t, bundle)
	assert.True(t, IsSchemaError(err))
}

func TestBuildGraphContext(t *testing.T) {
	f := richFixture(t)

	bundle, err := BuildGraphContext(context.Background(), f.holdings, f.corr, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 5, bundle.Meta.NumClients)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = BuildGraphContext(ctx, f.holdings, f.corr, 0.25)
	assert.ErrorIs(t, err, context.Canceled)

	dir := t.TempDir()
	_, err = BuildGraphContext(context.Background(), filepath.Join(dir, "h.csv"), filepath.Join(dir, "c.csv"), 0.25)
	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindHoldings, fe.Kind, "holdings failures are reported first")

	bad := newFixture(t, nil, []string{",A,B", "A,1,0.5"})
	_, err = BuildGraphContext(context.Background(), filepath.Join(dir, "h.csv"), bad.corr, 0.25)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindHoldings, fe.Kind)
	assert.False(t, IsSchemaError(err), "the matrix is not read after a holdings failure")
}
