package exporter

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"portfoliograph/internal/files"
	"portfoliograph/internal/infrastructure"
	"portfoliograph/pkg/contracts/domain"
)

// Export file names.
const (
	NodesFile    = "nodes.csv"
	EdgesFile    = "edges.csv"
	WorkbookFile = "graph.xlsx"
)

// Workbook sheet names.
const (
	SheetNodes = "Nodes"
	SheetEdges = "Edges"
	SheetMeta  = "Meta"
)

var (
	nodeHeaders = []string{"id", "label", "gross_notional", "net_notional", "positions_count", "product_mix"}
	edgeHeaders = []string{"source", "target", "weight", "corr_pct"}
)

// SnapshotInfo identifies the build an export or summary describes.
type SnapshotInfo struct {
	Dataset string
	BuiltAt time.Time
	MinCorr float64
}

// GraphExporter writes a graph bundle as CSV files and an XLSX workbook.
type GraphExporter struct {
	dir    string
	bom    bool
	csv    *CSVWriter
	logger *slog.Logger
}

// GraphExporterOption configures a GraphExporter.
type GraphExporterOption func(*GraphExporter)

// WithBOM prefixes the CSV files with a UTF-8 byte order mark.
func WithBOM(enabled bool) GraphExporterOption {
	return func(e *GraphExporter) { e.bom = enabled }
}

// NewGraphExporter creates an exporter writing into dir.
func NewGraphExporter(dir string, logger *slog.Logger, opts ...GraphExporterOption) *GraphExporter {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "exporter"))
	e := &GraphExporter{
		dir:    dir,
		csv:    NewCSVWriter(dir, logger),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes nodes.csv, edges.csv and graph.xlsx and returns their paths.
func (e *GraphExporter) Export(bundle *domain.GraphBundle, info SnapshotInfo) ([]string, error) {
	if bundle == nil {
		return nil, fmt.Errorf("no graph to export")
	}
	if err := ensureDir(e.dir); err != nil {
		return nil, err
	}

	nodesPath, err := e.csv.WriteCSV(NodesFile, WriteOptions{
		Headers:   nodeHeaders,
		Records:   nodeRecords(bundle),
		BOMPrefix: e.bom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export nodes: %w", err)
	}

	edgesPath, err := e.csv.WriteCSV(EdgesFile, WriteOptions{
		Headers:   edgeHeaders,
		Records:   edgeRecords(bundle),
		BOMPrefix: e.bom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export edges: %w", err)
	}

	workbookPath, err := e.WriteWorkbook(bundle, info)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Graph exported",
		slog.String("dataset", info.Dataset),
		slog.String("dir", e.dir),
		slog.Int("nodes", len(bundle.Nodes)),
		slog.Int("edges", len(bundle.Edges)))

	return []string{nodesPath, edgesPath, workbookPath}, nil
}

// WriteWorkbook writes graph.xlsx with the Nodes, Edges and Meta sheets.
func (e *GraphExporter) WriteWorkbook(bundle *domain.GraphBundle, info SnapshotInfo) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetNodes); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetEdges, SheetMeta} {
		if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("failed to create header style: %w", err)
	}

	nodes := [][]interface{}{toRow(nodeHeaders)}
	for _, n := range bundle.Nodes {
		nodes = append(nodes, []interface{}{
			n.ID, n.Label, n.GrossNotional, n.NetNotional, n.PositionsCount, formatMix(n.ProductMix),
		})
	}
	edges := [][]interface{}{toRow(edgeHeaders)}
	for _, ed := range bundle.Edges {
		edges = append(edges, []interface{}{ed.Source, ed.Target, ed.Weight, ed.CorrPct})
	}
	meta := [][]interface{}{{"key", "value"}}
	for _, kv := range metaRows(bundle.Meta, info) {
		meta = append(meta, []interface{}{kv[0], kv[1]})
	}

	for _, sheet := range []struct {
		name string
		rows [][]interface{}
	}{
		{SheetNodes, nodes},
		{SheetEdges, edges},
		{SheetMeta, meta},
	} {
		if err := writeSheet(f, sheet.name, sheet.rows, header); err != nil {
			return "", err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("failed to render workbook: %w", err)
	}
	path := filepath.Join(e.dir, WorkbookFile)
	if err := files.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func nodeRecords(bundle *domain.GraphBundle) [][]string {
	records := make([][]string, 0, len(bundle.Nodes))
	for _, n := range bundle.Nodes {
		records = append(records, []string{
			n.ID,
			n.Label,
			formatFloat(n.GrossNotional),
			formatFloat(n.NetNotional),
			strconv.Itoa(n.PositionsCount),
			formatMix(n.ProductMix),
		})
	}
	return records
}

func edgeRecords(bundle *domain.GraphBundle) [][]string {
	records := make([][]string, 0, len(bundle.Edges))
	for _, e := range bundle.Edges {
		records = append(records, []string{e.Source, e.Target, formatExact(e.Weight), formatExact(e.CorrPct)})
	}
	return records
}

func optionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatExact(*f)
}

func metaRows(meta domain.GraphMeta, info SnapshotInfo) [][2]string {
	builtAt := ""
	if !info.BuiltAt.IsZero() {
		builtAt = info.BuiltAt.UTC().Format(time.RFC3339)
	}

	collisions := make([]string, 0, len(meta.SlugCollisions))
	for id, names := range meta.SlugCollisions {
		collisions = append(collisions, id+": "+strings.Join(names, " | "))
	}
	sort.Strings(collisions)

	return [][2]string{
		{"dataset", info.Dataset},
		{"built_at", builtAt},
		{"min_corr_used", formatExact(meta.MinCorrUsed)},
		{"num_clients", strconv.Itoa(meta.NumClients)},
		{"num_edges", strconv.Itoa(meta.NumEdges)},
		{"corr_min_kept", optionalFloat(meta.CorrMinKept)},
		{"corr_max_kept", optionalFloat(meta.CorrMaxKept)},
		{"corr_scale", string(meta.CorrScale)},
		{"invalid_corr_cells", strconv.Itoa(meta.InvalidCorrCells)},
		{"asymmetric_pairs", strconv.Itoa(meta.AsymmetricPairs)},
		{"skipped_notional_rows", strconv.Itoa(meta.SkippedNotionalRows)},
		{"unidentified_rows", strconv.Itoa(meta.UnidentifiedRows)},
		{"dropped_from_corr", strings.Join(meta.DroppedFromCorr, ", ")},
		{"missing_corr_for_holdings", strings.Join(meta.MissingCorrForHoldings, ", ")},
		{"slug_collisions", strings.Join(collisions, "; ")},
	}
}
