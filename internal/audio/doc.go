// Package audio downloads a video's audio track with yt-dlp and normalizes it
// with ffmpeg into the mono PCM WAV the speech-to-text provider receives.
//
// Acquirer and Transcoder both run their tools through a Runner so tests can
// substitute the processes. SilentWAV is the stand-in payload used when
// acquisition fails and the analysis continues degraded.
package audio
