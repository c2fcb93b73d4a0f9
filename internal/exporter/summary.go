package exporter

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"portfoliograph/pkg/contracts/domain"
)

const (
	topClients     = 3
	listPreviewLen = 5
)

// SummaryPrinter renders a console summary of a graph build. Styling is
// dropped automatically when the writer is not a terminal.
type SummaryPrinter struct {
	w       io.Writer
	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	warn    lipgloss.Style
}

// NewSummaryPrinter creates a printer writing to w.
func NewSummaryPrinter(w io.Writer) *SummaryPrinter {
	r := lipgloss.NewRenderer(w)
	return &SummaryPrinter{
		w:       w,
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:   r.NewStyle().Bold(true),
		muted:   r.NewStyle().Faint(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
	}
}

// TopByGross returns up to n nodes ordered by gross notional, largest first.
// Ties keep node order.
func TopByGross(nodes []domain.Node, n int) []domain.Node {
	sorted := append([]domain.Node(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GrossNotional > sorted[j].GrossNotional
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Print writes the summary of bundle.
func (p *SummaryPrinter) Print(bundle *domain.GraphBundle, info SnapshotInfo) error {
	var b strings.Builder

	b.WriteString(p.heading.Render("Portfolio graph") + "\n")
	p.field(&b, "Dataset", info.Dataset)
	builtAt := "n/a"
	if !info.BuiltAt.IsZero() {
		builtAt = info.BuiltAt.UTC().Format(time.RFC3339)
	}
	p.field(&b, "Built at", builtAt)
	p.field(&b, "Threshold", formatExact(bundle.Meta.MinCorrUsed))
	p.field(&b, "Clients", strconv.Itoa(bundle.Meta.NumClients))
	p.field(&b, "Edges", strconv.Itoa(bundle.Meta.NumEdges))
	if bundle.Meta.CorrMinKept != nil && bundle.Meta.CorrMaxKept != nil {
		p.field(&b, "Kept range", fmt.Sprintf("%s to %s",
			formatExact(*bundle.Meta.CorrMinKept), formatExact(*bundle.Meta.CorrMaxKept)))
	}
	p.field(&b, "Scale", string(bundle.Meta.CorrScale))

	b.WriteString("\n" + p.heading.Render(fmt.Sprintf("Top %d clients by gross notional", topClients)) + "\n")
	top := TopByGross(bundle.Nodes, topClients)
	if len(top) == 0 {
		b.WriteString(p.muted.Render("  no clients") + "\n")
	}
	for i, n := range top {
		fmt.Fprintf(&b, "  %d. %s %s\n", i+1, p.label.Render(n.Label), p.muted.Render("("+n.ID+")"))
		fmt.Fprintf(&b, "     gross %s  net %s  positions %d\n",
			formatAmount(n.GrossNotional), formatAmount(n.NetNotional), n.PositionsCount)
		fmt.Fprintf(&b, "     mix %s\n", formatMixPercent(n.ProductMix))
	}

	b.WriteString("\n")
	p.list(&b, "Dropped from correlations", bundle.Meta.DroppedFromCorr)
	p.list(&b, "Missing correlations", bundle.Meta.MissingCorrForHoldings)
	if bundle.Meta.SkippedNotionalRows > 0 {
		b.WriteString(p.warn.Render(fmt.Sprintf("Rows without notional: %d", bundle.Meta.SkippedNotionalRows)) + "\n")
	}
	if bundle.Meta.UnidentifiedRows > 0 {
		b.WriteString(p.warn.Render(fmt.Sprintf("Rows without counterparty: %d", bundle.Meta.UnidentifiedRows)) + "\n")
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}

// PrintError reports a failed build.
func (p *SummaryPrinter) PrintError(dataset string, err error) {
	fmt.Fprintf(p.w, "%s %s: %v\n", p.warn.Render("Graph build failed for"), dataset, err)
}

func (p *SummaryPrinter) field(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "  %s %s\n", p.label.Render(fmt.Sprintf("%-10s", name+":")), value)
}

func (p *SummaryPrinter) list(b *strings.Builder, name string, items []string) {
	fmt.Fprintf(b, "%s (%d): %s\n", p.label.Render(name), len(items), truncateList(items, listPreviewLen))
}
