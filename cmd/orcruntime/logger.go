package main

import "log/slog"

// runtimeLogger returns the process-wide logger main() installed as
// slog's default, for commands that need to pass one to buildRuntime.
func runtimeLogger() *slog.Logger {
	return slog.Default()
}
