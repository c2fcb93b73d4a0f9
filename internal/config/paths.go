package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application paths.
type Paths struct {
	BaseDir      string
	DataDir      string
	DatasetsFile string
	LogsDir      string
	ExportDir    string
}

// ResolvePaths turns the configured paths into absolute paths. An empty
// BaseDir means the current working directory.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	base := cfg.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", cfg.BaseDir, err)
	}

	return &Paths{
		BaseDir:      base,
		DataDir:      resolve(base, cfg.DataDir),
		DatasetsFile: resolve(base, cfg.DatasetsFile),
		LogsDir:      resolve(base, cfg.LogsDir),
		ExportDir:    resolve(base, cfg.ExportDir),
	}, nil
}

// GetPaths resolves the paths of cfg.
func (c *Config) GetPaths() (*Paths, error) {
	return ResolvePaths(c.Paths)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Resolve joins a relative path onto BaseDir.
func (p *Paths) Resolve(rel string) string {
	return resolve(p.BaseDir, rel)
}

// EnsureDirectories creates the writable directories if they don't exist.
// The data directory is read-only input and is not created.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.LogsDir, p.ExportDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LogPathResolution logs the resolved paths at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("Resolved application paths",
		slog.String("base_dir", p.BaseDir),
		slog.String("data_dir", p.DataDir),
		slog.String("datasets_file", p.DatasetsFile),
		slog.String("logs_dir", p.LogsDir),
		slog.String("export_dir", p.ExportDir),
		slog.Bool("datasets_file_exists", FileExists(p.DatasetsFile)))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
