// Package telemetry provides structured logging, Prometheus metrics,
// and OpenTelemetry tracing for the orchestration core.
//
// # Metrics
//
// Metrics track cache tier hit/miss/stale rates, planner tier
// resolution (L1/L2/L3), DAGExecutor step outcomes and latency,
// DecisionMemory circuit-breaker trips, and context-window
// compactions. Register once at process startup with NewMetrics.
//
// # Logging
//
// Logging wraps log/slog with request/session correlation and
// automatic redaction of secrets (API keys, tokens, passwords) in both
// message text and structured fields.
//
// # Tracing
//
// Tracing uses OpenTelemetry spans around planning, execution, and
// synthesis so a single request can be followed end to end.
package telemetry
