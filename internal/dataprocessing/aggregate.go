package dataprocessing

import (
	"math"
	"slices"

	"portfoliograph/pkg/contracts/domain"
)

// unknownProductType keys positions with a blank product_type.
const unknownProductType = "unknown"

// Summarize computes the aggregates of the positions belonging to one
// counterparty. Rows without a numeric notional count as positions but are
// left out of the sums.
func Summarize(positions []domain.Position) domain.Aggregates {
	agg := domain.Aggregates{
		PositionsCount: len(positions),
		ProductMix:     map[string]float64{},
	}

	byType := make(map[string]float64)
	var order []string
	for _, p := range positions {
		if p.NotionalUSDEst == nil {
			agg.SkippedNotionalRows++
			continue
		}
		n := *p.NotionalUSDEst
		agg.GrossNotional += math.Abs(n)
		agg.NetNotional += n

		pt := p.ProductType
		if pt == "" {
			pt = unknownProductType
		}
		if _, ok := byType[pt]; !ok {
			order = append(order, pt)
		}
		byType[pt] += math.Abs(n)
	}

	if agg.GrossNotional == 0 {
		return agg
	}
	for _, pt := range order {
		agg.ProductMix[pt] = byType[pt] / agg.GrossNotional
	}
	return agg
}

// ClientAggregation is the result of grouping holdings by identifier.
type ClientAggregation struct {
	// Order lists identifiers in first-seen row order.
	Order   []string
	Details map[string]domain.ClientDetail
	// Collisions maps an identifier to its display names when more than one
	// name produced it.
	Collisions map[string][]string
	// UnidentifiedRows counts rows whose counterparty has no identifier.
	UnidentifiedRows int
	// SkippedNotionalRows counts rows without a numeric notional.
	SkippedNotionalRows int
}

// AggregateClients groups positions by counterparty identifier and
// summarizes each group. Names sharing an identifier are merged under the
// first name seen.
func AggregateClients(positions []domain.Position) ClientAggregation {
	res := ClientAggregation{
		Details:    make(map[string]domain.ClientDetail),
		Collisions: make(map[string][]string),
	}

	groups := make(map[string][]domain.Position)
	names := make(map[string][]string)
	for _, p := range positions {
		id := Slugify(p.Counterparty)
		if id == "" {
			res.UnidentifiedRows++
			continue
		}
		if _, ok := groups[id]; !ok {
			res.Order = append(res.Order, id)
		}
		groups[id] = append(groups[id], p)
		if !slices.Contains(names[id], p.Counterparty) {
			names[id] = append(names[id], p.Counterparty)
		}
	}

	for _, id := range res.Order {
		agg := Summarize(groups[id])
		res.SkippedNotionalRows += agg.SkippedNotionalRows
		res.Details[id] = domain.ClientDetail{
			Name:       names[id][0],
			ID:         id,
			Positions:  groups[id],
			Aggregates: agg,
		}
		if len(names[id]) > 1 {
			res.Collisions[id] = names[id]
		}
	}
	return res
}
