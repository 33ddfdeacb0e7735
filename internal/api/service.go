package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tubelens/internal/artifacts"
	"tubelens/internal/journal"
	"tubelens/internal/logging"
	"tubelens/internal/pipeline"
	"tubelens/internal/preflight"
	"tubelens/internal/services"
	"tubelens/internal/transcript"
)

const serviceStage = "api"

// Analyzer runs one analysis to completion.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*pipeline.Result, error)
}

// ArtifactReader is the subset of the artifact store the service reads and deletes.
type ArtifactReader interface {
	Get(id string) (*artifacts.Record, error)
	List() ([]artifacts.Summary, error)
	Delete(id string) (artifacts.DeleteResult, error)
	Info() artifacts.Info
}

// JournalReader exposes the journal queries used for status and health.
type JournalReader interface {
	Get(ctx context.Context, id string) (*journal.Entry, error)
	Counts(ctx context.Context) (map[journal.Status]int, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// HealthFunc returns the preflight report. deep requests provider checks.
type HealthFunc func(ctx context.Context, deep bool) preflight.Report

// Deps groups the collaborators of AnalysisService. Journal and Health are optional.
type Deps struct {
	Analyzer Analyzer
	Store    ArtifactReader
	Journal  JournalReader
	Health   HealthFunc
	Logger   *slog.Logger
	Clock    func() time.Time
}

// AnalysisService implements every operation of the request surface.
type AnalysisService struct {
	analyzer Analyzer
	store    ArtifactReader
	journal  JournalReader
	health   HealthFunc
	logger   *slog.Logger
	now      func() time.Time
	started  time.Time
}

// NewAnalysisService constructs the service. Analyzer may be nil for read-only
// use, in which case Analyze returns a configuration error.
func NewAnalysisService(deps Deps) (*AnalysisService, error) {
	if deps.Store == nil {
		return nil, errors.New("api: artifact store is required")
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AnalysisService{
		analyzer: deps.Analyzer,
		store:    deps.Store,
		journal:  deps.Journal,
		health:   deps.Health,
		logger:   logger.With(logging.String("component", "analysis-service")),
		now:      now,
		started:  now(),
	}, nil
}

// Analyze runs the pipeline for rawURL and reports the outcome.
func (s *AnalysisService) Analyze(ctx context.Context, rawURL string) (*AnalyzeResponse, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, services.Wrap(services.ErrInvalidInput, serviceStage, "analyze", "YouTube URL is required", nil)
	}
	if s.analyzer == nil {
		return nil, services.Wrap(services.ErrConfiguration, serviceStage, "analyze", "analysis pipeline is not available", nil)
	}
	result, err := s.analyzer.Analyze(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	message := "Analysis completed successfully"
	if result.Degraded {
		message = "Analysis completed with degraded results"
	}
	return &AnalyzeResponse{
		Success:         true,
		Message:         message,
		AnalysisID:      result.ID,
		YoutubeURL:      result.URL,
		VideoID:         result.VideoID,
		VideoInfo:       result.VideoInfo,
		Summary:         result.Summary,
		Screenshot:      result.Screenshot,
		Degraded:        result.Degraded,
		DegradedReasons: result.DegradedReasons,
		ResultURL:       "/result/" + result.ID,
	}, nil
}

// Status reports what is stored for id. Unknown ids yield Exists=false.
func (s *AnalysisService) Status(ctx context.Context, id string) (*StatusView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrInvalidInput, serviceStage, "status", "analysis id is required", nil)
	}
	record, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		ID:            id,
		Exists:        record.Exists,
		HasTranscript: record.Transcript != nil,
		HasScreenshot: record.Screenshot != nil,
		HasMetadata:   record.Metadata != nil,
		HasAudio:      record.Audio != nil,
	}
	if record.Transcript != nil {
		created := record.Transcript.CreatedAt
		view.CreatedAt = &created
	}
	if record.Metadata != nil {
		info := record.Metadata.VideoInfo
		view.VideoInfo = &info
		view.Degraded = record.Metadata.Degraded
		view.DegradedReasons = record.Metadata.DegradedReasons
		if view.CreatedAt == nil && !record.Metadata.CreatedAt.IsZero() {
			created := record.Metadata.CreatedAt
			view.CreatedAt = &created
		}
	}
	if s.journal != nil {
		entry, err := s.journal.Get(ctx, id)
		if err != nil {
			logging.WarnWithContext(s.logger, "journal lookup failed", "journal_lookup_failed",
				logging.String("analysis_id", id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "status omits run state"),
			)
		} else if entry != nil {
			view.State = string(entry.Status)
			view.Stage = entry.Stage
			view.FailedStage = entry.FailedStage
			view.Error = entry.ErrorMessage
			if len(view.DegradedReasons) == 0 && len(entry.DegradedReasons) > 0 {
				view.Degraded = true
				view.DegradedReasons = entry.DegradedReasons
			}
			if view.CreatedAt == nil {
				created := entry.CreatedAt
				view.CreatedAt = &created
			}
		}
	}
	return view, nil
}

// Result returns the full stored result for id.
func (s *AnalysisService) Result(_ context.Context, id string) (*ResultView, error) {
	record, err := s.lookup(id, "result")
	if err != nil {
		return nil, err
	}
	return &ResultView{
		AnalysisID: id,
		Transcript: record.Transcript,
		Screenshot: record.Screenshot,
		Metadata:   record.Metadata,
		Files:      record.Files,
	}, nil
}

// Transcript returns the transcript document for id.
func (s *AnalysisService) Transcript(_ context.Context, id string) (*artifacts.TranscriptDocument, error) {
	record, err := s.lookup(id, "transcript")
	if err != nil {
		return nil, err
	}
	return record.Transcript, nil
}

// Screenshot returns the screenshot artifact for id.
func (s *AnalysisService) Screenshot(_ context.Context, id string) (*artifacts.Artifact, error) {
	record, err := s.lookup(id, "screenshot")
	if err != nil {
		return nil, err
	}
	if record.Screenshot == nil {
		return nil, services.Wrap(services.ErrNotFound, serviceStage, "screenshot", "screenshot not found", nil)
	}
	return record.Screenshot, nil
}

// Metadata returns the metadata document for id.
func (s *AnalysisService) Metadata(_ context.Context, id string) (*artifacts.Metadata, error) {
	record, err := s.lookup(id, "metadata")
	if err != nil {
		return nil, err
	}
	if record.Metadata == nil {
		return nil, services.Wrap(services.ErrNotFound, serviceStage, "metadata", "metadata not found", nil)
	}
	return record.Metadata, nil
}

// Summary condenses the stored result for id. Counts come from the metadata
// summary when present and are recomputed from the transcript otherwise.
func (s *AnalysisService) Summary(_ context.Context, id string) (*SummaryView, error) {
	record, err := s.lookup(id, "summary")
	if err != nil {
		return nil, err
	}
	view := &SummaryView{AnalysisID: id, TotalSentences: len(record.Transcript.Sentences())}
	created := record.Transcript.CreatedAt
	view.CreatedAt = &created

	meta := record.Metadata
	if meta != nil {
		info := meta.VideoInfo
		view.VideoInfo = &info
		view.Degraded = meta.Degraded
		view.DegradedReasons = meta.DegradedReasons
		if !meta.ProcessedAt.IsZero() {
			processed := meta.ProcessedAt
			view.ProcessedAt = &processed
		}
	}
	if meta != nil && meta.Summary != nil {
		applySummary(view, *meta.Summary)
	} else {
		applySummary(view, transcript.Summarize(record.Transcript.Sentences()))
	}
	return view, nil
}

// List returns stored analyses, newest first.
func (s *AnalysisService) List(_ context.Context) (*ListView, error) {
	rows, err := s.store.List()
	if err != nil {
		return nil, err
	}
	return &ListView{Analyses: rows, Count: len(rows)}, nil
}

// Delete removes every artifact for id and its journal entry. Deleting an
// unknown id succeeds with nothing removed.
func (s *AnalysisService) Delete(ctx context.Context, id string) (*DeleteView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrInvalidInput, serviceStage, "delete", "analysis id is required", nil)
	}
	result, err := s.store.Delete(id)
	if err != nil {
		return nil, err
	}
	view := &DeleteView{
		Success:      true,
		Message:      "Analysis deleted successfully",
		ID:           id,
		DeletedFiles: result.DeletedFiles,
		DeletedCount: result.DeletedCount,
	}
	if s.journal != nil {
		removed, err := s.journal.Remove(ctx, id)
		if err != nil {
			logging.WarnWithContext(s.logger, "journal remove failed", "journal_remove_failed",
				logging.String("analysis_id", id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "status may still list the deleted analysis"),
			)
		}
		view.JournalRemoved = removed
	}
	s.logger.Info("analysis deleted",
		logging.String("analysis_id", id),
		logging.Int("deleted_count", view.DeletedCount),
		logging.String(logging.FieldEventType, "analysis_deleted"),
	)
	return view, nil
}

// Health reports preflight checks, storage counts, and journal counts.
func (s *AnalysisService) Health(ctx context.Context, deep bool) *HealthView {
	now := s.now()
	view := &HealthView{
		Healthy:   true,
		Storage:   s.store.Info(),
		Timestamp: now,
		Uptime:    now.Sub(s.started).Round(time.Second).String(),
	}
	if s.health != nil {
		report := s.health(ctx, deep)
		view.Healthy = report.Healthy
		view.Checks = report.Checks
	}
	if s.journal != nil {
		counts, err := s.journal.Counts(ctx)
		if err != nil {
			view.Healthy = false
			view.Checks = append(view.Checks, preflight.Result{Name: "Journal", Detail: err.Error()})
		} else {
			view.Analyses = make(map[string]int, len(counts))
			for status, n := range counts {
				view.Analyses[string(status)] = n
			}
		}
	}
	return view
}

func (s *AnalysisService) lookup(id, op string) (*artifacts.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrInvalidInput, serviceStage, op, "analysis id is required", nil)
	}
	record, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !record.Exists {
		return nil, services.Wrap(services.ErrNotFound, serviceStage, op, fmt.Sprintf("analysis %s not found", id), nil)
	}
	return record, nil
}
