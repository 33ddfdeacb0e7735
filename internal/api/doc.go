// Package api defines the transport types served by the HTTP API and printed
// by the CLI, and the AnalysisService that produces them from the pipeline,
// the artifact store, and the status journal.
//
// # Key Types
//
// AnalyzeResponse: outcome of a completed analysis with its summary and the
// degraded flag.
//
// StatusView: whether an analysis exists on disk, which artifacts it has, and
// the journal state for analyses that are still running or failed.
//
// ResultView, SummaryView, ListView, DeleteView, HealthView: the sub-views of
// a stored analysis and the service-level reports.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Lookups of unknown or malformed ids return
// errors marked services.ErrNotFound so transports can map them to 404.
// Status is the exception: it reports exists=false instead of failing.
//
// Render* functions produce the human-readable form used by the CLI and by
// GET /result/{id} when the client does not ask for JSON.
package api
