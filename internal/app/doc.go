// Package app wires the portfolio graph server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration (defaults, YAML file, PGRAPH_* environment)
//  2. Initialize logging and OpenTelemetry
//  3. Create the event hub, the graph coordinator and health checks
//  4. Set up HTTP handlers and middleware
//  5. Build the initial snapshot and start serving
//
// # Usage
//
//	cfg, err := config.Load()
//	app, err := app.New(cfg)
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err = app.Run(ctx)
//
// Run returns once ctx is cancelled and in-flight requests have drained.
// A failed initial build does not prevent startup; it is reported through
// /api/health until a later build succeeds.
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit.
package app
