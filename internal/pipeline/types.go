package pipeline

import (
	"context"

	"tubelens/internal/artifacts"
	"tubelens/internal/audio"
	"tubelens/internal/capture"
	"tubelens/internal/journal"
	"tubelens/internal/stt"
	"tubelens/internal/transcript"
)

// Stage names recorded in logs, metrics, the journal, and stage errors.
const (
	StageValidate   = "validate"
	StageCapture    = "capture"
	StageAcquire    = "acquire"
	StageTranscode  = "transcode"
	StageTranscribe = "transcribe"
	StageScore      = "score"
	StagePersist    = "persist"
)

// Degradation reason codes. Reasons are stored as "<code>: <detail>".
const (
	ReasonAudioUnavailable         = "audio_unavailable"
	ReasonTranscriptionUnavailable = "transcription_unavailable"
)

// Capturer scrapes the watch page and stores a screenshot.
type Capturer interface {
	Capture(ctx context.Context, session capture.Session, target capture.Target, analysisID string) (*capture.Result, error)
}

// Acquirer downloads the raw audio track.
type Acquirer interface {
	Acquire(ctx context.Context, canonicalURL, analysisID string) ([]byte, error)
}

// Transcoder normalizes raw audio.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte) (*audio.Transcoded, error)
}

// Transcriber converts normalized audio to words or text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, analysisID string) (*stt.Result, error)
}

// Scorer attaches detector probabilities to sentences.
type Scorer interface {
	Score(ctx context.Context, sentences []transcript.Sentence) ([]transcript.Sentence, transcript.Summary, error)
}

// ArtifactStore persists analysis outputs.
type ArtifactStore interface {
	SaveAudio(id string, data []byte) (artifacts.Artifact, error)
	SaveTranscript(id string, sentences []transcript.Sentence) (artifacts.Artifact, *artifacts.TranscriptDocument, error)
	SaveMetadata(id string, meta artifacts.Metadata) (artifacts.Artifact, *artifacts.Metadata, error)
	Delete(id string) (artifacts.DeleteResult, error)
}

// Journal tracks analysis status. It is optional.
type Journal interface {
	Begin(ctx context.Context, id, url, videoID string) (*journal.Entry, error)
	SetStage(ctx context.Context, id, stage string) error
	Complete(ctx context.Context, id string, degradedReasons []string) error
	Fail(ctx context.Context, id, stage, reason string) error
}

// Result is the composite outcome of a successful analysis.
type Result struct {
	ID              string                `json:"id"`
	URL             string                `json:"youtubeUrl"`
	VideoID         string                `json:"videoId"`
	VideoInfo       artifacts.VideoInfo   `json:"videoInfo"`
	Screenshot      artifacts.Artifact    `json:"screenshot"`
	AudioFile       artifacts.Artifact    `json:"audioFile"`
	TranscriptFile  artifacts.Artifact    `json:"transcriptFile"`
	Transcript      []transcript.Sentence `json:"transcript"`
	Summary         transcript.Summary    `json:"summary"`
	Metadata        *artifacts.Metadata   `json:"metadata"`
	Degraded        bool                  `json:"degraded"`
	DegradedReasons []string              `json:"degradedReasons,omitempty"`
}
