package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// startMetricsServer exposes /metrics on addr in the background, the
// same promhttp.Handler() wiring the teacher's gateway HTTP server
// uses. Errors after startup are logged, not fatal: a demo run
// shouldn't die because the metrics port was already taken.
func startMetricsServer(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
}
