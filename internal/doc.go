// Package internal contains the discovery and registration pipeline behind
// pkg/girouette.
//
// # Package Organization
//
//   - scanner: Finds controller files under a root directory
//   - watcher: File system monitoring with debouncing
//   - loader: Imports controller files concurrently and emits load events
//   - manifest: Decodes YAML, JSON and TOML controller files into annotations
//   - materializer: Merges a controller's annotations into route descriptors
//   - registry: Caches materialized controllers and reconciles the router
//   - config: Configuration loading and validation with Viper
//   - di: Service container wiring the pipeline together
//   - errors: Typed errors and the per-file failure collector
//   - logging: Structured logging on log/slog
//   - version: Build information
//
// # Data Flow
//
// The scanner feeds file paths to the loader, which imports each file and
// emits an added or updated event. Each event is materialized and handed to
// the registry, which pushes every cached controller to the router and
// commits once. A controller that fails at any stage is recorded in the
// failure collector and skipped; the others are still served.
package internal
