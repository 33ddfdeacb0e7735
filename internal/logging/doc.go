// Package logging assembles structured slog loggers and formatting helpers used
// across tubelens.
//
// It owns the configurable console/JSON handlers, fans output to stdout and the
// log file under paths.log_dir, and exposes context-aware helpers so pipeline
// code can tag every line with the analysis id, stage, and request correlation
// id. A no-op logger is provided for tests and wiring code that cannot fail.
package logging
