package dataprocessing

// Reconciliation classifies counterparty identities by the source tables
// that contain them.
type Reconciliation struct {
	// Shared holds identifiers present in both tables.
	Shared map[string]struct{}
	// DroppedFromCorr lists matrix labels, in matrix order, with no holdings
	// identity.
	DroppedFromCorr []string
	// MissingCorrForHoldings lists holdings identifiers, in holdings order,
	// with no matrix label.
	MissingCorrForHoldings []string
}

// Reconcile compares holdings identifiers against the matrix labels after
// normalizing the labels with Slugify. It never fails.
func Reconcile(holdingIDs []string, corrLabels []string) Reconciliation {
	rec := Reconciliation{
		Shared:                 make(map[string]struct{}),
		DroppedFromCorr:        []string{},
		MissingCorrForHoldings: []string{},
	}

	holdings := make(map[string]struct{}, len(holdingIDs))
	for _, id := range holdingIDs {
		holdings[id] = struct{}{}
	}

	corr := make(map[string]struct{}, len(corrLabels))
	for _, label := range corrLabels {
		id := Slugify(label)
		if id != "" {
			corr[id] = struct{}{}
		}
		if _, ok := holdings[id]; ok && id != "" {
			rec.Shared[id] = struct{}{}
			continue
		}
		rec.DroppedFromCorr = append(rec.DroppedFromCorr, label)
	}

	for _, id := range holdingIDs {
		if _, ok := corr[id]; !ok {
			rec.MissingCorrForHoldings = append(rec.MissingCorrForHoldings, id)
		}
	}
	return rec
}

// Eligible reports whether both identifiers may carry an edge.
func (r Reconciliation) Eligible(a, b string) bool {
	_, okA := r.Shared[a]
	_, okB := r.Shared[b]
	return okA && okB
}
