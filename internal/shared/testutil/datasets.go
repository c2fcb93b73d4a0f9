package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// HoldingsHeader is the header row of a holdings fixture.
const HoldingsHeader = "counterparty,ticker_or_contract,product_type,quantity,price_demo,notional_usd_est"

// Dataset is one version of holdings and correlations on disk.
type Dataset struct {
	Holdings     []string
	Correlations []string
	Description  map[string]interface{}
}

// SampleDataset has three clients, two of them in the matrix, one pair
// above the default threshold and one matrix label without holdings.
func SampleDataset() Dataset {
	return Dataset{
		Holdings: []string{
			"Alpha Capital,AAPL,EQUITY,100,190,19000",
			"Beta Partners,ESZ4,RATES_FUTURE,-3,5000,-15000",
			"Gamma Fund,CL,COMMODITY_FUTURE,2,70,140",
			"Alpha Capital,SPX 5000C,OPTION,5,200,1000",
		},
		Correlations: []string{
			",Alpha Capital,Beta Partners,Delta LLC",
			"Alpha Capital,1,0.62,0.8",
			"Beta Partners,0.62,1,0.1",
			"Delta LLC,0.8,0.1,1",
		},
		Description: map[string]interface{}{"description": "sample book"},
	}
}

// PercentDataset expresses its matrix in percent and has every client in it.
func PercentDataset() Dataset {
	return Dataset{
		Holdings: []string{
			"Alpha Capital,AAPL,EQUITY,10,190,1900",
			"Beta Partners,MSFT,EQUITY,-5,400,-2000",
			"Gamma Fund,TY,RATES_FUTURE,1,110,110",
		},
		Correlations: []string{
			",Alpha Capital,Beta Partners,Gamma Fund",
			"Alpha Capital,100,30,45",
			"Beta Partners,30,100,90",
			"Gamma Fund,45,90,100",
		},
		Description: map[string]interface{}{"description": "percent matrix"},
	}
}

// Workspace is a temporary base directory laid out like a deployment:
// datasets.json at the root and data/<version>/ per dataset.
type Workspace struct {
	BaseDir      string
	DataDir      string
	RegistryPath string
}

// NewWorkspace writes every dataset and a registry whose active version is
// active. An empty active leaves active_version out of the registry.
func NewWorkspace(t *testing.T, active string, datasets map[string]Dataset) Workspace {
	t.Helper()

	base := t.TempDir()
	ws := Workspace{
		BaseDir:      base,
		DataDir:      filepath.Join(base, "data"),
		RegistryPath: filepath.Join(base, "datasets.json"),
	}

	descriptions := make(map[string]interface{}, len(datasets))
	versions := make([]string, 0, len(datasets))
	for version := range datasets {
		versions = append(versions, version)
	}
	sort.Strings(versions)

	for _, version := range versions {
		ds := datasets[version]
		ws.WriteDataset(t, version, ds)
		desc := ds.Description
		if desc == nil {
			desc = map[string]interface{}{}
		}
		descriptions[version] = desc
	}

	registry := map[string]interface{}{"datasets": descriptions}
	if active != "" {
		registry["active_version"] = active
	}
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		t.Fatalf("marshal registry: %v", err)
	}
	WriteFile(t, ws.RegistryPath, string(data))
	return ws
}

// WriteDataset writes holdings.csv and correlations.csv for version. Nil
// tables are not written.
func (ws Workspace) WriteDataset(t *testing.T, version string, ds Dataset) {
	t.Helper()

	dir := filepath.Join(ws.DataDir, version)
	if ds.Holdings != nil {
		WriteLines(t, filepath.Join(dir, "holdings.csv"), append([]string{HoldingsHeader}, ds.Holdings...)...)
	}
	if ds.Correlations != nil {
		WriteLines(t, filepath.Join(dir, "correlations.csv"), ds.Correlations...)
	}
}

// WriteLines writes lines joined by newlines, creating parent directories.
func WriteLines(t *testing.T, path string, lines ...string) string {
	t.Helper()
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return WriteFile(t, path, content)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
