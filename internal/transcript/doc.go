// Package transcript defines the word and sentence model shared by the
// transcription, scoring, and storage layers.
//
// Segment is the pure word-to-sentence grouping used for provider responses
// that carry word timings; SegmentText covers plain-text responses that only
// report a total duration. Summarize and Classify derive the aggregate AI
// statistics from scored sentences.
package transcript
