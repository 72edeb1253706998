// Package cmd provides the command-line interface for girouette.
//
// The commands load a directory of controller files with stub controllers,
// so the routes they declare can be listed, checked and served without the
// host application.
//
// # Available Commands
//
//   - routes: List the routes in registration order
//   - validate: Report controller files that fail to load or register
//   - serve: Serve the routes with gorilla/mux or chi, with live reload
//   - watch: Print reloads and reconciliations as files change
//   - version: Show build information
//
// # Command Examples
//
//	// List routes as JSON, accepting the auth middleware
//	girouette routes -o json -m auth
//
//	// Fail a CI job on broken controller files
//	girouette validate -c app/controllers
//
//	// Serve with chi and reload on change
//	girouette serve --router chi --hot-reload
//
// # Configuration
//
// Settings come from .girouette.yml (or --config, or GIROUETTE_CONFIG_FILE),
// GIROUETTE_ prefixed environment variables and flags, in increasing order
// of precedence.
package cmd
