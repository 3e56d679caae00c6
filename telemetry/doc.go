// Package telemetry provides structured logging and Prometheus metrics.
//
// Logging is built on zap and exposed as a *slog.Logger through the slog-zap
// bridge, so library packages depend only on log/slog. Logs go to stderr by
// default because stdout carries the stdio protocol stream.
//
// Metrics are registered on a caller-supplied registerer. Every recording
// method is safe on a nil *Metrics, so components can be wired without
// metrics in tests.
package telemetry
