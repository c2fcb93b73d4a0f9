// Package dataprocessing builds the counterparty correlation graph from a
// holdings table and a correlation matrix.
//
// # Architecture
//
// The package is organized into the stages of a single build:
//
// 1. Loader: reads the holdings table and the correlation matrix (CSV or XLSX)
// 2. Normalizer: infers the matrix scale and rescales it to [0,1]
// 3. Reconciliation: classifies counterparties by the tables that contain them
// 4. Aggregation: gross/net notional, position counts and product mix per client
// 5. Assembly: nodes, thresholded edges, client details and build metadata
//
// # Usage
//
//	bundle, err := dataprocessing.BuildGraph("data/v1/holdings.csv", "data/v1/correlations.csv", 0.25)
//	if err != nil {
//	    var se *dataprocessing.SchemaError
//	    if errors.As(err, &se) {
//	        log.Printf("missing columns: %v", se.MissingColumns)
//	    }
//	    return err
//	}
//
// # Data Flow
//
//	Loader → {Slugify, Summarize} → Reconcile → Assemble → GraphBundle
//
// # Error Handling
//
// A build fails only with *FileError (source missing or unreadable, the
// message names the path) or *SchemaError (missing holdings columns, or a
// malformed matrix). Everything else is absorbed into the bundle metadata:
//
//   - counterparties present in only one table
//   - empty or non-numeric cells
//   - out-of-range correlations (clamped)
//   - names that collapse to the same identifier (merged)
//
// A build holds no shared state, so concurrent builds are safe. Assemble is
// deterministic for identical inputs and threshold.
package dataprocessing
