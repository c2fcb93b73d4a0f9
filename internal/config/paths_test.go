package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()

	t.Run("relative paths join the base dir", func(t *testing.T) {
		paths, err := ResolvePaths(PathsConfig{
			BaseDir:      base,
			DataDir:      "data",
			DatasetsFile: "datasets.json",
			LogsDir:      "logs",
			ExportDir:    "out",
		})
		require.NoError(t, err)

		assert.Equal(t, base, paths.BaseDir)
		assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
		assert.Equal(t, filepath.Join(base, "datasets.json"), paths.DatasetsFile)
		assert.Equal(t, filepath.Join(base, "logs"), paths.LogsDir)
		assert.Equal(t, filepath.Join(base, "out"), paths.ExportDir)
		assert.Equal(t, filepath.Join(base, "x", "y.csv"), paths.Resolve("x/y.csv"))
	})

	t.Run("absolute paths are kept", func(t *testing.T) {
		abs := filepath.Join(base, "elsewhere")
		paths, err := ResolvePaths(PathsConfig{BaseDir: base, DataDir: abs})
		require.NoError(t, err)
		assert.Equal(t, abs, paths.DataDir)
		assert.Equal(t, abs, paths.Resolve(abs))
	})

	t.Run("empty base dir is the working directory", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)

		paths, err := ResolvePaths(PathsConfig{DataDir: "data"})
		require.NoError(t, err)
		assert.Equal(t, wd, paths.BaseDir)
		assert.Equal(t, filepath.Join(wd, "data"), paths.DataDir)
	})
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths, err := ResolvePaths(PathsConfig{BaseDir: base, DataDir: "data", LogsDir: "logs", ExportDir: "exports"})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	assert.DirExists(t, paths.LogsDir)
	assert.DirExists(t, paths.ExportDir)
	assert.NoDirExists(t, paths.DataDir)

	assert.True(t, FileExists(paths.LogsDir))
	assert.False(t, FileExists(filepath.Join(base, "nope")))
}
