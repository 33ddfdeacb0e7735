// Package ffprobe decodes ffprobe JSON output for downloaded and normalized
// audio files.
//
// Inspect runs the binary; InspectWith accepts a Runner so callers and tests
// can substitute the process. Result helpers expose the primary audio stream,
// duration, size, and bitrate with unparseable values reported as zero or NaN.
package ffprobe
