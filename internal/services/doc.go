// Package services defines shared utilities consumed by the pipeline stages and
// the external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp analysis IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent API statuses (4xx vs 5xx), and StageFailure for naming
//     the stage an unrecovered error escaped from.
//   - A bounded retry policy shared by the sub-stages that tolerate a re-attempt.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
