package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliograph/internal/shared/testutil"
)

func setupWriter(t *testing.T) (*CSVWriter, string) {
	t.Helper()
	dir := t.TempDir()
	logger, _ := testutil.NewTestLogger(t)
	return NewCSVWriter(dir, logger), dir
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	writer, dir := setupWriter(t)

	tests := []struct {
		name     string
		filePath string
		options  WriteOptions
		validate func(t *testing.T, content []byte)
	}{
		{
			name:     "basic write with headers",
			filePath: "basic.csv",
			options: WriteOptions{
				Headers: []string{"id", "label"},
				Records: [][]string{
					{"alpha-capital", "Alpha Capital"},
					{"beta-partners", "Beta Partners"},
				},
			},
			validate: func(t *testing.T, content []byte) {
				lines := strings.Split(strings.TrimSpace(string(content)), "\n")
				require.Len(t, lines, 3)
				assert.Equal(t, "id,label", lines[0])
				assert.Equal(t, "alpha-capital,Alpha Capital", lines[1])
				assert.Equal(t, "beta-partners,Beta Partners", lines[2])
			},
		},
		{
			name:     "write with BOM prefix",
			filePath: "bom.csv",
			options: WriteOptions{
				Headers:   []string{"source", "target"},
				Records:   [][]string{{"a", "b"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, content []byte) {
				assert.True(t, bytes.HasPrefix(content, utf8BOM))
				lines := strings.Split(strings.TrimSpace(string(content[3:])), "\n")
				assert.Equal(t, "source,target", lines[0])
			},
		},
		{
			name:     "quotes fields with commas",
			filePath: "quoted.csv",
			options: WriteOptions{
				Records: [][]string{{"gamma-fund", "Gamma, Fund"}},
			},
			validate: func(t *testing.T, content []byte) {
				assert.Equal(t, "gamma-fund,\"Gamma, Fund\"\n", string(content))
			},
		},
		{
			name:     "empty records keep the header",
			filePath: "nested/empty.csv",
			options:  WriteOptions{Headers: []string{"Col1", "Col2"}},
			validate: func(t *testing.T, content []byte) {
				assert.Equal(t, "Col1,Col2\n", string(content))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := writer.WriteCSV(tt.filePath, tt.options)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.filePath), path)

			content, err := os.ReadFile(path)
			require.NoError(t, err)
			tt.validate(t, content)
		})
	}
}

func TestCSVWriter_ReplacesExistingFile(t *testing.T) {
	writer, dir := setupWriter(t)

	_, err := writer.WriteCSV("nodes.csv", WriteOptions{Records: [][]string{{"old"}, {"rows"}, {"here"}}})
	require.NoError(t, err)
	_, err = writer.WriteCSV("nodes.csv", WriteOptions{Records: [][]string{{"new"}}})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "nodes.csv"))
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCSVWriter_AbsolutePath(t *testing.T) {
	writer, _ := setupWriter(t)
	target := filepath.Join(t.TempDir(), "abs.csv")

	path, err := writer.WriteCSV(target, WriteOptions{Records: [][]string{{"x"}}})
	require.NoError(t, err)
	assert.Equal(t, target, path)
	assert.FileExists(t, target)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "13.40", formatFloat(13.4))
	assert.Equal(t, "0.62", formatExact(0.62))
	assert.Equal(t, "1,234,567.89", formatAmount(1234567.891))
	assert.Equal(t, "-12,000.00", formatAmount(-12000))

	mix := map[string]float64{"option": 0.25, "equity": 0.75}
	assert.Equal(t, "equity:0.75;option:0.25", formatMix(mix))
	assert.Equal(t, "equity 75.0%, option 25.0%", formatMixPercent(mix))
	assert.Equal(t, "n/a", formatMixPercent(nil))
	assert.Equal(t, "", formatMix(map[string]float64{}))

	assert.Equal(t, "none", truncateList(nil, 5))
	assert.Equal(t, "a, b", truncateList([]string{"a", "b"}, 5))
	assert.Equal(t, "a, b, c, d, e ... and 2 more",
		truncateList([]string{"a", "b", "c", "d", "e", "f", "g"}, 5))
}
