package domain

import (
	"encoding/json"
	"sort"
)

// Required holdings columns, in the order they are reported when missing.
const (
	ColumnCounterparty     = "counterparty"
	ColumnTickerOrContract = "ticker_or_contract"
	ColumnProductType      = "product_type"
	ColumnQuantity         = "quantity"
	ColumnPriceDemo        = "price_demo"
	ColumnNotionalUSDEst   = "notional_usd_est"
)

// RequiredHoldingsColumns lists the columns every holdings table must carry.
var RequiredHoldingsColumns = []string{
	ColumnCounterparty,
	ColumnTickerOrContract,
	ColumnProductType,
	ColumnQuantity,
	ColumnPriceDemo,
	ColumnNotionalUSDEst,
}

// DefaultMinCorr is the threshold applied when a caller does not supply one.
const DefaultMinCorr = 0.25

// Position is one holdings row. Numeric fields are nil when the source cell
// is empty or not a number. Columns outside the required set are kept
// verbatim in Extra.
type Position struct {
	Counterparty     string            `json:"counterparty"`
	TickerOrContract string            `json:"ticker_or_contract"`
	ProductType      string            `json:"product_type"`
	Quantity         *float64          `json:"quantity"`
	PriceDemo        *float64          `json:"price_demo"`
	NotionalUSDEst   *float64          `json:"notional_usd_est"`
	Extra            map[string]string `json:"-"`
}

// MarshalJSON flattens Extra into the position object so a position renders
// as the original row did. Required columns always win over extras.
func (p Position) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Extra)+len(RequiredHoldingsColumns))
	for k, v := range p.Extra {
		out[k] = v
	}
	out[ColumnCounterparty] = p.Counterparty
	out[ColumnTickerOrContract] = p.TickerOrContract
	out[ColumnProductType] = p.ProductType
	out[ColumnQuantity] = p.Quantity
	out[ColumnPriceDemo] = p.PriceDemo
	out[ColumnNotionalUSDEst] = p.NotionalUSDEst
	return json.Marshal(out)
}

// Aggregates are the per-counterparty financial summaries.
type Aggregates struct {
	GrossNotional       float64            `json:"gross_notional"`
	NetNotional         float64            `json:"net_notional"`
	PositionsCount      int                `json:"positions_count"`
	ProductMix          map[string]float64 `json:"product_mix"`
	SkippedNotionalRows int                `json:"skipped_notional_rows"`
}

// Node is a counterparty in the graph.
type Node struct {
	ID             string             `json:"id"`
	Label          string             `json:"label"`
	GrossNotional  float64            `json:"gross_notional"`
	NetNotional    float64            `json:"net_notional"`
	PositionsCount int                `json:"positions_count"`
	ProductMix     map[string]float64 `json:"product_mix"`
}

// Edge is an undirected correlation link. Source sorts before Target.
type Edge struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Weight  float64 `json:"weight"`
	CorrPct float64 `json:"corr_pct"`
}

// ClientDetail carries a node's aggregates together with its raw positions.
type ClientDetail struct {
	Name       string     `json:"name"`
	ID         string     `json:"id"`
	Positions  []Position `json:"positions"`
	Aggregates Aggregates `json:"aggregates"`
}

// CorrScale describes how the correlation matrix values were interpreted.
type CorrScale string

const (
	CorrScaleFraction CorrScale = "fraction"
	CorrScalePercent  CorrScale = "percent"
	CorrScaleEmpty    CorrScale = "empty"
)

// GraphMeta holds build statistics. It is recomputed on every build.
type GraphMeta struct {
	NumClients             int                 `json:"num_clients"`
	NumEdges               int                 `json:"num_edges"`
	CorrMinKept            *float64            `json:"corr_min_kept"`
	CorrMaxKept            *float64            `json:"corr_max_kept"`
	MinCorrUsed            float64             `json:"min_corr_used"`
	DroppedFromCorr        []string            `json:"dropped_from_corr"`
	MissingCorrForHoldings []string            `json:"missing_corr_for_holdings"`
	CorrScale              CorrScale           `json:"corr_scale"`
	InvalidCorrCells       int                 `json:"invalid_corr_cells"`
	AsymmetricPairs        int                 `json:"asymmetric_pairs"`
	SkippedNotionalRows    int                 `json:"skipped_notional_rows"`
	UnidentifiedRows       int                 `json:"unidentified_rows"`
	SlugCollisions         map[string][]string `json:"slug_collisions,omitempty"`
}

// GraphBundle is the complete output of one graph build. It must be treated
// as read-only once returned.
type GraphBundle struct {
	Nodes         []Node                  `json:"nodes"`
	Edges         []Edge                  `json:"edges"`
	ClientDetails map[string]ClientDetail `json:"client_details"`
	Meta          GraphMeta               `json:"meta"`
}

// ClientIDs returns the node identifiers in node order.
func (b *GraphBundle) ClientIDs() []string {
	ids := make([]string, 0, len(b.Nodes))
	for _, n := range b.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// Neighbor is one edge seen from a single client.
type Neighbor struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Weight  float64 `json:"weight"`
	CorrPct float64 `json:"corr_pct"`
}

// Neighbors lists the kept edges incident to id, strongest first.
func (b *GraphBundle) Neighbors(id string) []Neighbor {
	labels := make(map[string]string, len(b.Nodes))
	for _, n := range b.Nodes {
		labels[n.ID] = n.Label
	}

	out := []Neighbor{}
	for _, e := range b.Edges {
		var other string
		switch id {
		case e.Source:
			other = e.Target
		case e.Target:
			other = e.Source
		default:
			continue
		}
		out = append(out, Neighbor{ID: other, Label: labels[other], Weight: e.Weight, CorrPct: e.CorrPct})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out
}
