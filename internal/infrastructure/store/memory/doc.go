// Package memory provides thread-safe in-memory implementations of the
// pipegate store ports. They back the CLI and the HTTP server when no external
// state store is configured, and are the reference behaviour for tests.
package memory
