// Package shared holds helpers used across packages that belong to no
// single layer.
//
// The testutil subpackage provides a capturing slog handler and on-disk
// dataset fixtures (holdings, correlation matrices and datasets.json) for
// tests of the loader, the graph service and the HTTP handlers.
//
//	logger, logs := testutil.NewTestLogger(t)
//	ws := testutil.NewWorkspace(t, "v1", map[string]testutil.Dataset{"v1": testutil.SampleDataset()})
package shared
