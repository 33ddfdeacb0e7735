// Package stt talks to the ElevenLabs speech-to-text API.
//
// Client.Transcribe uploads a normalized WAV and maps the provider response to
// transcript words. When the provider returns only text, Result carries the
// text and total duration so callers can fall back to transcript.SegmentText.
// Sentences applies whichever segmentation the result supports.
package stt
