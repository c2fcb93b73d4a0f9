package dataprocessing

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"portfoliograph/pkg/contracts/domain"
)

const utf8BOM = "\ufeff"

// HoldingsTable is the validated holdings table.
type HoldingsTable struct {
	Path      string
	Columns   []string
	Positions []domain.Position
}

// readRecords reads a .xlsx workbook (first sheet) or a CSV file into raw
// records. Blank rows are dropped.
func readRecords(kind, path string) ([][]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileError{Kind: kind, Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &FileError{Kind: kind, Path: path, Err: errors.New("path is a directory")}
	}

	var records [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, &FileError{Kind: kind, Path: path, Err: err}
	}

	out := records[:0]
	for _, rec := range records {
		if !isBlank(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cellAt(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

// parseNumber parses a numeric cell, tolerating surrounding whitespace and
// thousands separators. Empty, non-numeric and non-finite cells yield nil.
func parseNumber(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// headerNames trims header cells and makes them unique. Unnamed columns get
// a positional name and repeated names get a numeric suffix.
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, cell := range raw {
		name := strings.TrimSpace(strings.TrimPrefix(cell, utf8BOM))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}

// LoadHoldings reads and validates the holdings table at path.
func LoadHoldings(path string) (*HoldingsTable, error) {
	records, err := readRecords(KindHoldings, path)
	if err != nil {
		return nil, err
	}
	return ParseHoldings(path, records)
}

// ParseHoldings validates raw holdings records whose first record is the
// header. path is used for error reporting only.
func ParseHoldings(path string, records [][]string) (*HoldingsTable, error) {
	var columns []string
	if len(records) > 0 {
		columns = headerNames(records[0])
	}

	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}

	var missing []string
	for _, col := range domain.RequiredHoldingsColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		found := append([]string{}, columns...)
		return nil, &SchemaError{Kind: KindHoldings, Path: path, MissingColumns: missing, FoundColumns: found}
	}

	required := make(map[int]bool, len(domain.RequiredHoldingsColumns))
	for _, col := range domain.RequiredHoldingsColumns {
		required[index[col]] = true
	}

	table := &HoldingsTable{Path: path, Columns: columns}
	if len(records) > 1 {
		table.Positions = make([]domain.Position, 0, len(records)-1)
	}
	for _, rec := range records[1:] {
		p := domain.Position{
			Counterparty:     strings.TrimSpace(cellAt(rec, index[domain.ColumnCounterparty])),
			TickerOrContract: strings.TrimSpace(cellAt(rec, index[domain.ColumnTickerOrContract])),
			ProductType:      strings.TrimSpace(cellAt(rec, index[domain.ColumnProductType])),
			Quantity:         parseNumber(cellAt(rec, index[domain.ColumnQuantity])),
			PriceDemo:        parseNumber(cellAt(rec, index[domain.ColumnPriceDemo])),
			NotionalUSDEst:   parseNumber(cellAt(rec, index[domain.ColumnNotionalUSDEst])),
		}
		for i, name := range columns {
			if required[i] {
				continue
			}
			if p.Extra == nil {
				p.Extra = make(map[string]string, len(columns)-len(required))
			}
			p.Extra[name] = cellAt(rec, i)
		}
		table.Positions = append(table.Positions, p)
	}
	return table, nil
}
