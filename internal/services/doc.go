// Package services implements the business logic between the HTTP handlers
// and the graph builder.
//
// # GraphService
//
// GraphService owns the published portfolio graph. A published Snapshot is
// immutable and held in an atomic pointer, so readers never block:
//
//	snap, err := svc.Graph(ctx, nil)      // current snapshot, builds if none
//	snap, err := svc.Graph(ctx, &minCorr) // rebuilds when the threshold differs
//	snap, err := svc.Rebuild(ctx, nil)    // rebuild at the current threshold
//	snap, err := svc.SelectDataset(ctx, "v2")
//
// Builds run one at a time. The active dataset is read from the registry
// once a build holds the writer, so a rebuild queued behind a dataset switch
// builds the new dataset. Concurrent identical requests share a single
// build, and a failed build never replaces the published snapshot; the
// failure is kept for Status and announced as a graph:error event.
//
// # HealthService
//
// HealthService reports the graph status, readiness (a graph is published
// and the registry is readable) and liveness.
//
// # Errors
//
// Operations return sentinel errors wrapped with context so handlers can
// map them with errors.Is:
//
//	- ErrGraphUnavailable when nothing is published
//	- ErrClientNotFound (as *ClientNotFoundError) for unknown identifiers
//	- ErrDatasetNotFound, ErrNoActiveDataset, ErrRegistryNotFound from the registry
//	- ErrInvalidThreshold for a negative threshold
//
// Load failures surface as *dataprocessing.FileError or
// *dataprocessing.SchemaError.
package services
