package files

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"portfoliograph/internal/dataprocessing"
)

var (
	// ErrRegistryNotFound is returned when the registry file does not exist.
	ErrRegistryNotFound = errors.New("dataset registry not found")
	// ErrDatasetNotFound is returned for a version the registry does not list.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrNoActiveDataset is returned when the registry lists no datasets.
	ErrNoActiveDataset = errors.New("no active dataset")
)

// UnknownDatasetError names a version missing from the registry together
// with the versions that do exist.
type UnknownDatasetError struct {
	Version   string
	Available []string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("dataset %q not found; available versions: [%s]", e.Version, strings.Join(e.Available, ", "))
}

// Is makes errors.Is(err, ErrDatasetNotFound) hold.
func (e *UnknownDatasetError) Is(target error) bool { return target == ErrDatasetNotFound }

// registryFile is the on-disk shape of the registry.
type registryFile struct {
	Datasets      map[string]json.RawMessage `json:"datasets"`
	ActiveVersion string                     `json:"active_version,omitempty"`
}

// Registry is a loaded dataset registry. Descriptions are kept as raw JSON
// and written back unchanged.
type Registry struct {
	path     string
	datasets map[string]json.RawMessage
	active   string
}

// LoadRegistry reads the registry at path.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, path)
		}
		return nil, fmt.Errorf("failed to read dataset registry %s: %w", path, err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid dataset registry %s: %w", path, err)
	}
	if file.Datasets == nil {
		file.Datasets = make(map[string]json.RawMessage)
	}

	return &Registry{path: path, datasets: file.Datasets, active: file.ActiveVersion}, nil
}

// Path returns the file the registry was loaded from.
func (r *Registry) Path() string { return r.path }

// Versions returns the registered versions in sorted order.
func (r *Registry) Versions() []string {
	versions := make([]string, 0, len(r.datasets))
	for v := range r.datasets {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Has reports whether version is registered.
func (r *Registry) Has(version string) bool {
	_, ok := r.datasets[version]
	return ok
}

// Description returns the raw description of version.
func (r *Registry) Description(version string) (json.RawMessage, bool) {
	d, ok := r.datasets[version]
	return d, ok
}

// Descriptions returns a copy of every description keyed by version.
func (r *Registry) Descriptions() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(r.datasets))
	for v, d := range r.datasets {
		if len(bytes.TrimSpace(d)) == 0 {
			d = json.RawMessage("{}")
		}
		out[v] = d
	}
	return out
}

// Active returns the active version. Without an explicit active version,
// or when it names an unregistered dataset, the first version in sorted
// order is used.
func (r *Registry) Active() (string, error) {
	if r.active != "" && r.Has(r.active) {
		return r.active, nil
	}
	versions := r.Versions()
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: registry %s lists no datasets", ErrNoActiveDataset, r.path)
	}
	if r.active != "" {
		slog.Warn("Active dataset not registered, falling back",
			slog.String("active_version", r.active),
			slog.String("fallback", versions[0]),
			slog.String("registry", r.path))
	}
	return versions[0], nil
}

// Select makes version active and persists the registry. The in-memory
// state only changes once the file has been written.
func (r *Registry) Select(version string) error {
	if !r.Has(version) {
		return &UnknownDatasetError{Version: version, Available: r.Versions()}
	}

	previous := r.active
	r.active = version
	if err := r.Save(); err != nil {
		r.active = previous
		return err
	}
	return nil
}

// Save writes the registry as indented JSON through an atomic rename.
func (r *Registry) Save() error {
	data, err := json.MarshalIndent(registryFile{Datasets: r.datasets, ActiveVersion: r.active}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset registry: %w", err)
	}
	data = append(data, '\n')

	if err := WriteFileAtomic(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to save dataset registry: %w", err)
	}
	return nil
}

// FileNames are the expected table file names inside a version directory.
type FileNames struct {
	Holdings     string
	Correlations string
}

// DefaultFileNames returns the conventional file names.
func DefaultFileNames() FileNames {
	return FileNames{Holdings: "holdings.csv", Correlations: "correlations.csv"}
}

// DatasetPaths locates the two tables of one version.
type DatasetPaths struct {
	Version      string
	Dir          string
	Holdings     string
	Correlations string
}

// ResolvePaths returns the table locations of version under dataDir. A
// missing CSV is replaced by an .xlsx sibling when one exists. When either
// table is absent the result is a *dataprocessing.FileError naming every
// expected location.
func (r *Registry) ResolvePaths(dataDir, version string, names FileNames) (DatasetPaths, error) {
	if !r.Has(version) {
		return DatasetPaths{}, &UnknownDatasetError{Version: version, Available: r.Versions()}
	}
	if version != filepath.Base(version) || version == "." || version == ".." {
		return DatasetPaths{}, fmt.Errorf("dataset version %q is not a plain directory name", version)
	}

	dir := filepath.Join(dataDir, version)
	paths := DatasetPaths{Version: version, Dir: dir}

	type table struct {
		kind string
		name string
		dst  *string
	}
	var missing []string
	firstKind, firstPath := "", ""
	for _, t := range []table{
		{dataprocessing.KindHoldings, names.Holdings, &paths.Holdings},
		{dataprocessing.KindCorrelations, names.Correlations, &paths.Correlations},
	} {
		p, ok := locate(dir, t.name)
		*t.dst = p
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (expected at: %s)", t.name, p))
			if firstPath == "" {
				firstKind, firstPath = t.kind, p
			}
		}
	}

	if len(missing) > 0 {
		return paths, &dataprocessing.FileError{
			Kind: firstKind,
			Path: firstPath,
			Err:  fmt.Errorf("data files missing for dataset %q: %s: %w", version, strings.Join(missing, ", "), os.ErrNotExist),
		}
	}
	return paths, nil
}

// locate returns dir/name, or its .xlsx sibling when only that exists.
func locate(dir, name string) (string, bool) {
	p := filepath.Join(dir, name)
	if fileExists(p) {
		return p, true
	}
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".csv") {
		alt := filepath.Join(dir, strings.TrimSuffix(name, ext)+".xlsx")
		if fileExists(alt) {
			return alt, true
		}
	}
	return p, false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
