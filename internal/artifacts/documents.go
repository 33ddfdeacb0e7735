package artifacts

import (
	"time"

	"tubelens/internal/transcript"
)

// Kind names an artifact type.
type Kind string

const (
	KindScreenshot Kind = "screenshot"
	KindAudio      Kind = "audio"
	KindTranscript Kind = "transcript"
	KindMetadata   Kind = "metadata"
)

// Artifact describes one persisted file.
type Artifact struct {
	Kind       Kind   `json:"kind"`
	AnalysisID string `json:"analysisId"`
	Filename   string `json:"filename"`
	Path       string `json:"filepath"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
}

// VideoInfo is the best-effort metadata scraped from the watch page.
type VideoInfo struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	ViewCount int64  `json:"viewCount"`
	Views     string `json:"views,omitempty"`
	Duration  int    `json:"duration"`
	Defaulted bool   `json:"defaulted,omitempty"`
}

// AudioInfo summarizes an audio payload as reported by ffprobe.
type AudioInfo struct {
	Format     string  `json:"format"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
	Bitrate    int64   `json:"bitrate"`
	Codec      string  `json:"codec,omitempty"`
	SampleRate int     `json:"sampleRate,omitempty"`
	Channels   int     `json:"channels,omitempty"`
}

// AudioSection pairs the downloaded and normalized audio descriptions.
type AudioSection struct {
	Original  *AudioInfo `json:"original,omitempty"`
	Converted *AudioInfo `json:"converted,omitempty"`
}

// TranscriptionInfo records where the transcript came from.
type TranscriptionInfo struct {
	Source    string  `json:"source"`
	Model     string  `json:"model,omitempty"`
	WordCount int     `json:"wordCount"`
	Duration  float64 `json:"duration"`
	Note      string  `json:"note,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// AIAnalysisInfo records detector settings and coverage.
type AIAnalysisInfo struct {
	Model                string  `json:"model"`
	TotalSentences       int     `json:"totalSentences"`
	AnalyzedSentences    int     `json:"analyzedSentences"`
	UnscoredSentences    int     `json:"unscoredSentences"`
	AverageAIProbability float64 `json:"averageAIProbability"`
}

// Metadata is the metadata document stored beside the transcript. It is
// first written as a checkpoint after capture and acquisition, then replaced
// by the final version once scoring finishes.
type Metadata struct {
	ID              string              `json:"id"`
	URL             string              `json:"youtubeUrl"`
	VideoID         string              `json:"videoId"`
	VideoInfo       VideoInfo           `json:"videoInfo"`
	Screenshot      *Artifact           `json:"screenshot,omitempty"`
	AudioFile       *Artifact           `json:"audioFile,omitempty"`
	Audio           AudioSection        `json:"audio"`
	Transcription   *TranscriptionInfo  `json:"transcription,omitempty"`
	AIAnalysis      *AIAnalysisInfo     `json:"aiAnalysis,omitempty"`
	Summary         *transcript.Summary `json:"summary,omitempty"`
	Degraded        bool                `json:"degraded"`
	DegradedReasons []string            `json:"degradedReasons,omitempty"`
	Final           bool                `json:"final"`
	CreatedAt       time.Time           `json:"createdAt"`
	ProcessedAt     time.Time           `json:"processedAt"`
}

// TranscriptDocument is the transcript file layout:
// {id, transcript: {data: {transcript: [...]}}, createdAt, metadata}.
type TranscriptDocument struct {
	ID         string          `json:"id"`
	Transcript TranscriptBody  `json:"transcript"`
	CreatedAt  time.Time       `json:"createdAt"`
	Metadata   TranscriptStats `json:"metadata"`
}

// TranscriptBody wraps the sentence list.
type TranscriptBody struct {
	Data TranscriptData `json:"data"`
}

// TranscriptData holds the ordered sentences.
type TranscriptData struct {
	Transcript []transcript.Sentence `json:"transcript"`
}

// TranscriptStats is the small summary embedded in the transcript document.
type TranscriptStats struct {
	TotalSentences   int  `json:"totalSentences"`
	HasAIProbability bool `json:"hasAIProbability"`
}

// Sentences returns the stored sentence list.
func (d *TranscriptDocument) Sentences() []transcript.Sentence {
	if d == nil {
		return nil
	}
	return d.Transcript.Data.Transcript
}
