// Package detector scores transcript sentences with a Hugging Face hosted
// AI-text classifier.
//
// Client performs one inference call per text. Scorer walks a transcript,
// rate limits the calls, bounds each one with its own timeout, and records a
// provider failure as an unscored sentence rather than inventing a value.
package detector
