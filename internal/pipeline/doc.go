// Package pipeline runs one analysis end to end: validate the URL, capture the
// page and acquire audio concurrently, normalize the audio, transcribe,
// segment, score, and persist the artifacts.
//
// Acquisition and transcription failures degrade the result instead of
// failing it: the run continues with a silent waveform or the placeholder
// transcript and records why in Result.DegradedReasons. Any other failure
// after the id is assigned removes the partial artifacts and returns a
// services.StageError naming the stage.
package pipeline
