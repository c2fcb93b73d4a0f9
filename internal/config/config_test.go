package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8000, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
				assert.True(t, cfg.Security.RateLimit.Enabled)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.Equal(t, 100, cfg.Logging.MaxSizeMB)
				assert.Equal(t, "datasets.json", cfg.Paths.DatasetsFile)
				assert.Equal(t, 0.25, cfg.Graph.DefaultMinCorr)
				assert.Equal(t, "holdings.csv", cfg.Graph.HoldingsFile)
				assert.Equal(t, "correlations.csv", cfg.Graph.CorrelationsFile)
				assert.True(t, cfg.Graph.RebuildOnStart)
				assert.Equal(t, "portfoliograph", cfg.Telemetry.ServiceName)
			},
		},
		{
			name: "file overrides defaults",
			file: `
server:
  port: 9090
graph:
  default_min_corr: 0.4
  holdings_file: positions.xlsx
logging:
  level: debug
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 0.4, cfg.Graph.DefaultMinCorr)
				assert.Equal(t, "positions.xlsx", cfg.Graph.HoldingsFile)
				assert.Equal(t, "correlations.csv", cfg.Graph.CorrelationsFile, "keys missing from the file keep defaults")
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
			},
		},
		{
			name: "env overrides file",
			file: "server:\n  port: 9090\n",
			env: map[string]string{
				"PGRAPH_SERVER_PORT":              "7070",
				"PGRAPH_GRAPH_DEFAULT_MIN_CORR":   "0",
				"PGRAPH_SECURITY_ALLOWED_ORIGINS": "http://a.test,http://b.test",
				"PGRAPH_LOGGING_OUTPUT":           "both",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 0.0, cfg.Graph.DefaultMinCorr)
				assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, "both", cfg.Logging.Output)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"PGRAPH_SERVER_PORT": "70000"},
			wantErr: "invalid server port",
		},
		{
			name:    "negative threshold",
			file:    "graph:\n  default_min_corr: -0.1\n",
			wantErr: "min_corr must be non-negative",
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"PGRAPH_LOGGING_LEVEL": "loud"},
			wantErr: "invalid log level",
		},
		{
			name:    "unknown log output",
			env:     map[string]string{"PGRAPH_LOGGING_OUTPUT": "syslog"},
			wantErr: "invalid log output",
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"PGRAPH_SERVER_PORT": "eighty"},
			wantErr: "failed to load config from env",
		},
		{
			name:    "malformed yaml",
			file:    "server: [port",
			wantErr: "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var path string
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetConfigFilePathPrefersEnv(t *testing.T) {
	t.Setenv("PGRAPH_CONFIG", "/etc/portfoliograph.yaml")
	assert.Equal(t, "/etc/portfoliograph.yaml", getConfigFilePath())
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, ":8000", Default().Server.Addr())
	assert.Equal(t, "127.0.0.1:9000", ServerConfig{Host: "127.0.0.1", Port: 9000}.Addr())
}
