package api

import (
	"time"

	"tubelens/internal/artifacts"
	"tubelens/internal/preflight"
	"tubelens/internal/transcript"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	YoutubeURL string `json:"youtubeUrl"`
}

// AnalyzeResponse reports a completed analysis.
type AnalyzeResponse struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	AnalysisID      string              `json:"analysisId"`
	YoutubeURL      string              `json:"youtubeUrl"`
	VideoID         string              `json:"videoId"`
	VideoInfo       artifacts.VideoInfo `json:"videoInfo"`
	Summary         transcript.Summary  `json:"summary"`
	Screenshot      artifacts.Artifact  `json:"screenshot"`
	Degraded        bool                `json:"degraded"`
	DegradedReasons []string            `json:"degradedReasons,omitempty"`
	ResultURL       string              `json:"resultUrl"`
}

// StatusView combines stored artifacts with the journal entry for an id.
type StatusView struct {
	ID              string               `json:"id"`
	Exists          bool                 `json:"exists"`
	HasTranscript   bool                 `json:"hasTranscript"`
	HasScreenshot   bool                 `json:"hasScreenshot"`
	HasMetadata     bool                 `json:"hasMetadata"`
	HasAudio        bool                 `json:"hasAudio"`
	CreatedAt       *time.Time           `json:"createdAt,omitempty"`
	VideoInfo       *artifacts.VideoInfo `json:"videoInfo,omitempty"`
	State           string               `json:"state,omitempty"`
	Stage           string               `json:"stage,omitempty"`
	FailedStage     string               `json:"failedStage,omitempty"`
	Error           string               `json:"error,omitempty"`
	Degraded        bool                 `json:"degraded"`
	DegradedReasons []string             `json:"degradedReasons,omitempty"`
}

// ResultView is the full stored result for an id.
type ResultView struct {
	AnalysisID string                        `json:"analysisId"`
	Transcript *artifacts.TranscriptDocument `json:"transcript"`
	Screenshot *artifacts.Artifact           `json:"screenshot,omitempty"`
	Metadata   *artifacts.Metadata           `json:"metadata,omitempty"`
	Files      map[artifacts.Kind]string     `json:"files"`
}

// SummaryView condenses the detector results of one analysis.
type SummaryView struct {
	AnalysisID              string               `json:"analysisId"`
	VideoInfo               *artifacts.VideoInfo `json:"videoInfo,omitempty"`
	TotalSentences          int                  `json:"totalSentences"`
	AnalyzedSentences       int                  `json:"analyzedSentences"`
	AverageAIProbability    float64              `json:"averageAIProbability"`
	AIGeneratedSentences    int                  `json:"aiGeneratedSentences"`
	HumanGeneratedSentences int                  `json:"humanGeneratedSentences"`
	UncertainSentences      int                  `json:"uncertainSentences"`
	UnscoredSentences       int                  `json:"unscoredSentences"`
	Degraded                bool                 `json:"degraded"`
	DegradedReasons         []string             `json:"degradedReasons,omitempty"`
	CreatedAt               *time.Time           `json:"createdAt,omitempty"`
	ProcessedAt             *time.Time           `json:"processedAt,omitempty"`
}

// ListView is the list of stored analyses, newest first.
type ListView struct {
	Analyses []artifacts.Summary `json:"analyses"`
	Count    int                 `json:"count"`
}

// DeleteView reports what a delete removed.
type DeleteView struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	ID             string   `json:"id"`
	DeletedFiles   []string `json:"deletedFiles"`
	DeletedCount   int      `json:"deletedCount"`
	JournalRemoved bool     `json:"journalRemoved"`
}

// HealthView is the system health report.
type HealthView struct {
	Healthy   bool               `json:"healthy"`
	Checks    []preflight.Result `json:"checks"`
	Storage   artifacts.Info     `json:"storage"`
	Analyses  map[string]int     `json:"analyses,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Uptime    string             `json:"uptime,omitempty"`
}

// ErrorResponse is the body of every non-2xx HTTP response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// StatusResponse wraps StatusView.
type StatusResponse struct {
	Success bool        `json:"success"`
	Status  *StatusView `json:"status"`
}

// ResultResponse wraps ResultView.
type ResultResponse struct {
	Success bool `json:"success"`
	*ResultView
}

// TranscriptResponse carries the transcript document of one analysis.
type TranscriptResponse struct {
	Success    bool                          `json:"success"`
	AnalysisID string                        `json:"analysisId"`
	Transcript *artifacts.TranscriptDocument `json:"transcript"`
}

// MetadataResponse carries the metadata document of one analysis.
type MetadataResponse struct {
	Success    bool                `json:"success"`
	AnalysisID string              `json:"analysisId"`
	Metadata   *artifacts.Metadata `json:"metadata"`
}

// SummaryResponse wraps SummaryView.
type SummaryResponse struct {
	Success bool         `json:"success"`
	Summary *SummaryView `json:"summary"`
}

// ListResponse wraps ListView.
type ListResponse struct {
	Success bool `json:"success"`
	*ListView
}

// HealthResponse wraps HealthView.
type HealthResponse struct {
	Success bool        `json:"success"`
	Health  *HealthView `json:"health"`
}
