// Package daemon coordinates the long-running tubelens server process.
//
// It serves the HTTP API on top of api.AnalysisService, exposes stored
// artifacts under the public prefix, publishes Prometheus metrics, and runs
// the cron-scheduled retention sweep. A flock-based lock in the data
// directory prevents two servers from sharing the same artifact namespaces.
//
// Keep orchestration logic here: analysis steps live in the pipeline package
// while the daemon focuses on startup, shutdown, and request routing.
package daemon
