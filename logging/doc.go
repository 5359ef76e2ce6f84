// Package logging provides a minimal logging interface and adapters for the
// trip-planning service.
//
// The Logger interface defines the standard leveled methods (Debug, Info,
// Warn, Error) that the graph, tools and providers use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger with component / invocation scoping and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	builder := graph.NewBuilder(factory, registry, func(o *graph.Options) { o.Logger = logger })
//
// Arguments following the message are slog-style key/value pairs.
package logging
