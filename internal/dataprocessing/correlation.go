package dataprocessing

import (
	"fmt"
	"math"
	"strings"

	"portfoliograph/pkg/contracts/domain"
)

// asymmetryTolerance is the largest difference between mirrored cells that
// is still considered symmetric.
const asymmetryTolerance = 1e-9

// CorrelationMatrix is a labeled square matrix. Values[i][j] is nil when
// the cell is empty or not a number.
type CorrelationMatrix struct {
	Path   string
	Labels []string
	Values [][]*float64
}

// Size returns the number of labels.
func (m *CorrelationMatrix) Size() int { return len(m.Labels) }

// LoadCorrelations reads the correlation matrix at path. The first record
// holds the column labels after a corner cell; every following record holds
// a row label followed by that row's values.
func LoadCorrelations(path string) (*CorrelationMatrix, error) {
	records, err := readRecords(KindCorrelations, path)
	if err != nil {
		return nil, err
	}
	return ParseCorrelations(path, records)
}

// ParseCorrelations validates raw matrix records. An empty record set is an
// empty matrix.
func ParseCorrelations(path string, records [][]string) (*CorrelationMatrix, error) {
	m := &CorrelationMatrix{Path: path}
	if len(records) == 0 {
		return m, nil
	}

	header := records[0]
	for len(header) > 1 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	cols := make([]string, 0, len(header))
	for _, cell := range header[min(1, len(header)):] {
		cols = append(cols, strings.TrimSpace(cell))
	}
	rows := records[1:]

	malformed := func(format string, args ...interface{}) error {
		return &SchemaError{Kind: KindCorrelations, Path: path, Problem: fmt.Sprintf(format, args...)}
	}

	if len(rows) != len(cols) {
		return nil, malformed("matrix is not square: %d rows, %d columns", len(rows), len(cols))
	}
	if dup, ok := firstDuplicate(cols); ok {
		return nil, malformed("duplicate column label %q", dup)
	}

	rowLabels := make([]string, len(rows))
	for i, rec := range rows {
		rowLabels[i] = strings.TrimSpace(cellAt(rec, 0))
	}
	if dup, ok := firstDuplicate(rowLabels); ok {
		return nil, malformed("duplicate row label %q", dup)
	}

	m.Labels = cols
	m.Values = make([][]*float64, len(rows))
	for i, rec := range rows {
		if rowLabels[i] == "" {
			return nil, malformed("row %d has no label", i+1)
		}
		if Slugify(rowLabels[i]) != Slugify(cols[i]) {
			return nil, malformed("row label %q at position %d does not match column label %q", rowLabels[i], i+1, cols[i])
		}
		for j := len(cols) + 1; j < len(rec); j++ {
			if strings.TrimSpace(rec[j]) != "" {
				return nil, malformed("row %q has more values than the %d columns", rowLabels[i], len(cols))
			}
		}

		m.Values[i] = make([]*float64, len(cols))
		for j := range cols {
			m.Values[i][j] = parseNumber(cellAt(rec, j+1))
		}
	}
	return m, nil
}

// firstDuplicate returns the first label that appears twice. Empty labels
// are ignored here and reported elsewhere.
func firstDuplicate(labels []string) (string, bool) {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			return l, true
		}
		seen[l] = struct{}{}
	}
	return "", false
}

// CorrelationPair is one normalized upper-triangle cell keyed by identifier.
// Source sorts before Target.
type CorrelationPair struct {
	Source  string
	Target  string
	Weight  float64
	CorrPct float64
}

// NormalizedCorrelations is the matrix rescaled to the unit interval.
type NormalizedCorrelations struct {
	Scale           domain.CorrScale
	Pairs           []CorrelationPair
	InvalidCells    int
	AsymmetricPairs int
}

// InferScale decides whether the matrix holds fractions or percentages from
// the largest absolute off-diagonal value.
func InferScale(m *CorrelationMatrix) domain.CorrScale {
	maxAbs := -1.0
	for i, row := range m.Values {
		for j, v := range row {
			if i == j || v == nil {
				continue
			}
			maxAbs = math.Max(maxAbs, math.Abs(*v))
		}
	}
	switch {
	case maxAbs < 0:
		return domain.CorrScaleEmpty
	case maxAbs > 1.0:
		return domain.CorrScalePercent
	default:
		return domain.CorrScaleFraction
	}
}

// NormalizeCorrelations emits the upper triangle of m as identifier pairs.
// The diagonal, pairs whose labels share an identifier and cells without a
// number are skipped. When two label pairs collapse to the same identifier
// pair the first one wins.
func NormalizeCorrelations(m *CorrelationMatrix) *NormalizedCorrelations {
	out := &NormalizedCorrelations{Scale: InferScale(m), Pairs: []CorrelationPair{}}

	ids := make([]string, len(m.Labels))
	for i, l := range m.Labels {
		ids[i] = Slugify(l)
	}

	seen := make(map[[2]string]struct{})
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			v := m.Values[i][j]
			if v == nil {
				out.InvalidCells++
				continue
			}
			if mirror := m.Values[j][i]; mirror != nil && math.Abs(*mirror-*v) > asymmetryTolerance {
				out.AsymmetricPairs++
			}

			src, dst := ids[i], ids[j]
			if src == "" || dst == "" || src == dst {
				continue
			}
			if src > dst {
				src, dst = dst, src
			}
			key := [2]string{src, dst}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			weight, pct := rescale(*v, out.Scale)
			out.Pairs = append(out.Pairs, CorrelationPair{Source: src, Target: dst, Weight: weight, CorrPct: pct})
		}
	}
	return out
}

// rescale maps a raw cell to a weight in [0,1] and a percentage in [0,100].
// A percent-scale cell keeps its own value as the percentage. A fraction
// is rounded to nine decimals so that 0.49 reports 49.
func rescale(v float64, scale domain.CorrScale) (weight, pct float64) {
	if scale == domain.CorrScalePercent {
		pct = clamp(v, 0, 100)
		return pct / 100, pct
	}
	weight = clamp(v, 0, 1)
	pct = math.Round(weight*100*1e9) / 1e9
	return weight, pct
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
