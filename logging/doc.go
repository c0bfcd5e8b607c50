// Package logging provides a minimal logging interface and adapters for agentlite.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that agents, managers, executors and the engine use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - StructuredLogger (log/slog) with component and task package context and
//     domain helpers that add the error kind of failures
//   - FromSlog wrapping an existing *slog.Logger
//   - ForTask scoping any Logger to the task package being run
//   - ZapAdapter wrapping a *zap.Logger
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a, err := agent.New("mathbot", client, func(o *agent.Options) { o.Logger = logger })
//
// Arguments after the message are key/value pairs in every implementation.
package logging
