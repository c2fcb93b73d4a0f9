// Package files manages the dataset registry and the on-disk layout of
// dataset versions.
//
// The registry is a JSON document, usually datasets.json, mapping version
// names to free-form descriptions plus the active version:
//
//	{
//	  "datasets": {"v1": {"description": "Q2 book"}, "v2": {}},
//	  "active_version": "v1"
//	}
//
// Each version lives in its own directory under the data directory and
// holds a holdings table and a correlation matrix. ResolvePaths maps a
// version to those two files, accepting an .xlsx workbook when the CSV is
// absent. Writes go through WriteFileAtomic so readers never observe a
// partially written registry.
package files
