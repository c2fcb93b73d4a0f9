package dataprocessing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestLoadHoldings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "holdings.csv",
		holdingsHeader+",desk,trade_date",
		"Alpha Fund,AAPL,EQUITY,100,190.5,\"19,050\",NY,2024-01-02",
		"Alpha Fund,ESZ4,RATES_FUTURE,-2,5000,n/a,LDN,",
		"",
		"Beta Capital,SPX 5000C,OPTION,10,12,-120,NY,2024-01-03",
	)

	table, err := LoadHoldings(path)
	require.NoError(t, err)
	require.Len(t, table.Positions, 3)
	assert.Equal(t, path, table.Path)
	assert.Contains(t, table.Columns, "desk")

	first := table.Positions[0]
	assert.Equal(t, "Alpha Fund", first.Counterparty)
	assert.Equal(t, "AAPL", first.TickerOrContract)
	assert.Equal(t, "EQUITY", first.ProductType)
	require.NotNil(t, first.NotionalUSDEst)
	assert.Equal(t, 19050.0, *first.NotionalUSDEst)
	assert.Equal(t, map[string]string{"desk": "NY", "trade_date": "2024-01-02"}, first.Extra)

	second := table.Positions[1]
	assert.Nil(t, second.NotionalUSDEst, "non-numeric notional is absent")
	require.NotNil(t, second.Quantity)
	assert.Equal(t, -2.0, *second.Quantity)
	assert.Equal(t, "", second.Extra["trade_date"])

	assert.Equal(t, -120.0, *table.Positions[2].NotionalUSDEst)
}

func TestLoadHoldingsStripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "holdings.csv",
		"\ufeff"+holdingsHeader,
		"Alpha,AAPL,EQUITY,1,1,1",
	)

	table, err := LoadHoldings(path)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", table.Positions[0].Counterparty)
}

func TestLoadHoldingsErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		setup       func() string
		wantFile    bool
		wantMissing []string
	}{
		{
			name:     "missing file",
			setup:    func() string { return filepath.Join(dir, "nope.csv") },
			wantFile: true,
		},
		{
			name:     "directory",
			setup:    func() string { return dir },
			wantFile: true,
		},
		{
			name: "missing columns",
			setup: func() string {
				return writeFile(t, dir, "partial.csv",
					"counterparty,ticker_or_contract,product_type,notional_usd_est,extra",
					"A,X,EQUITY,1,z")
			},
			wantMissing: []string{"quantity", "price_demo"},
		},
		{
			name:        "empty file",
			setup:       func() string { return writeFile(t, dir, "empty.csv") },
			wantMissing: []string{"counterparty", "ticker_or_contract", "product_type", "quantity", "price_demo", "notional_usd_est"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup()
			table, err := LoadHoldings(path)
			require.Error(t, err)
			assert.Nil(t, table)

			if tt.wantFile {
				var fe *FileError
				require.True(t, errors.As(err, &fe), "got %T", err)
				assert.Equal(t, path, fe.Path)
				assert.Contains(t, err.Error(), path)
				assert.False(t, IsSchemaError(err))
				return
			}

			var se *SchemaError
			require.True(t, errors.As(err, &se), "got %T", err)
			assert.Equal(t, tt.wantMissing, se.MissingColumns)
			for _, col := range tt.wantMissing {
				assert.Contains(t, err.Error(), col)
			}
			assert.False(t, IsFileError(err))
		})
	}
}

func TestLoadHoldingsMissingFileUnwraps(t *testing.T) {
	_, err := LoadHoldings(filepath.Join(t.TempDir(), "gone.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadHoldingsWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{
		"counterparty", "ticker_or_contract", "product_type", "quantity", "price_demo", "notional_usd_est", "book",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Gamma LP", "CLZ4", "COMMODITY_FUTURE", 3, 70.1, 21030, "macro"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"Gamma LP", "XOM", "EQUITY", -50, 110, -5500}))

	path := filepath.Join(t.TempDir(), "holdings.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := LoadHoldings(path)
	require.NoError(t, err)
	require.Len(t, table.Positions, 2)
	assert.Equal(t, 21030.0, *table.Positions[0].NotionalUSDEst)
	assert.Equal(t, "macro", table.Positions[0].Extra["book"])
	assert.Equal(t, "", table.Positions[1].Extra["book"])
	assert.Equal(t, -5500.0, *table.Positions[1].NotionalUSDEst)
}

func TestLoadHoldingsCorruptWorkbook(t *testing.T) {
	path := writeFile(t, t.TempDir(), "holdings.xlsx", "not a zip archive")

	_, err := LoadHoldings(path)
	assert.True(t, IsFileError(err))
}

func TestHeaderNames(t *testing.T) {
	got := headerNames([]string{" a ", "", "a", "b", "a"})
	assert.Equal(t, []string{"a", "column_2", "a.1", "b", "a.2"}, got)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"12.5", floatPtr(12.5)},
		{" -1,000 ", floatPtr(-1000)},
		{"1e3", floatPtr(1000)},
		{"", nil},
		{"abc", nil},
		{"NaN", nil},
		{"inf", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseNumber(tt.in))
		})
	}
}

func floatPtr(v float64) *float64 { return &v }
