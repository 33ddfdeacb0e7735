package api_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tubelens/internal/api"
	"tubelens/internal/artifacts"
	"tubelens/internal/journal"
	"tubelens/internal/pipeline"
	"tubelens/internal/preflight"
	"tubelens/internal/services"
	"tubelens/internal/testsupport"
	"tubelens/internal/transcript"
)

type fakeAnalyzer struct {
	result *pipeline.Result
	err    error
	urls   []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, rawURL string) (*pipeline.Result, error) {
	f.urls = append(f.urls, rawURL)
	return f.result, f.err
}

type env struct {
	store   *artifacts.Store
	journal *journal.Store
	svc     *api.AnalysisService
	now     time.Time
}

func newEnv(t *testing.T, analyzer api.Analyzer) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := artifacts.NewFromConfig(cfg, artifacts.WithClock(func() time.Time { return now }))
	jr := testsupport.MustOpenJournal(t, cfg)
	svc, err := api.NewAnalysisService(api.Deps{
		Analyzer: analyzer,
		Store:    store,
		Journal:  jr,
		Health: func(_ context.Context, deep bool) preflight.Report {
			checks := []preflight.Result{{Name: "yt-dlp", Passed: true}}
			if deep {
				checks = append(checks, preflight.Result{Name: "Speech-to-text API", Detail: "unauthorized"})
				return preflight.Report{Healthy: false, Checks: checks}
			}
			return preflight.Report{Healthy: true, Checks: checks}
		},
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewAnalysisService: %v", err)
	}
	return &env{store: store, journal: jr, svc: svc, now: now}
}

func scoredSentences() []transcript.Sentence {
	probs := []float64{0.9, 0.2, 0.5, 0.75, 0.1}
	out := make([]transcript.Sentence, len(probs))
	for i, p := range probs {
		out[i] = transcript.Sentence{
			Text:           "sentence",
			Start:          float64(i),
			End:            float64(i) + 0.9,
			AIProbability:  transcript.Probability(p),
			Classification: transcript.Classify(transcript.Probability(p)),
		}
	}
	return out
}

func (e *env) seed(t *testing.T, id string, withMetadata bool) {
	t.Helper()
	sentences := scoredSentences()
	if _, _, err := e.store.SaveTranscript(id, sentences); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	if _, err := e.store.SaveScreenshot(id, []byte{0xff, 0xd8, 0xff}); err != nil {
		t.Fatalf("SaveScreenshot: %v", err)
	}
	if !withMetadata {
		return
	}
	summary := transcript.Summarize(sentences)
	meta := artifacts.Metadata{
		ID:              id,
		URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		VideoID:         "dQw4w9WgXcQ",
		VideoInfo:       artifacts.VideoInfo{Title: "Never Gonna", Author: "Rick", ViewCount: 10, Duration: 212},
		Summary:         &summary,
		Degraded:        true,
		DegradedReasons: []string{"transcription_unavailable: provider down"},
		Final:           true,
		CreatedAt:       e.now,
		ProcessedAt:     e.now.Add(time.Minute),
	}
	if _, _, err := e.store.SaveMetadata(id, meta); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
}

func TestAnalyzeReturnsResponse(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &pipeline.Result{
		ID:              "analysis_1_abcdef12",
		URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		VideoID:         "dQw4w9WgXcQ",
		VideoInfo:       artifacts.VideoInfo{Title: "t"},
		Summary:         transcript.Summary{TotalSentences: 3},
		Degraded:        true,
		DegradedReasons: []string{"audio_unavailable: boom"},
	}}
	e := newEnv(t, analyzer)

	resp, err := e.svc.Analyze(context.Background(), "  https://youtu.be/dQw4w9WgXcQ ")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analyzer.urls[0] != "https://youtu.be/dQw4w9WgXcQ" {
		t.Fatalf("url not trimmed: %q", analyzer.urls[0])
	}
	if !resp.Success || resp.ResultURL != "/result/analysis_1_abcdef12" || !resp.Degraded {
		t.Fatalf("unexpected response %+v", resp)
	}
	if !strings.Contains(resp.Message, "degraded") {
		t.Fatalf("expected degraded message, got %q", resp.Message)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	failure := services.StageFailure("capture", services.Wrap(services.ErrExternalTool, "capture", "screenshot", "video is not playable", nil))
	e := newEnv(t, &fakeAnalyzer{err: failure})

	if _, err := e.svc.Analyze(context.Background(), " "); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty url, got %v", err)
	}
	_, err := e.svc.Analyze(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if stage, ok := services.FailedStage(err); !ok || stage != "capture" {
		t.Fatalf("expected capture stage failure, got %v", err)
	}

	readOnly := newEnv(t, nil)
	if _, err := readOnly.svc.Analyze(context.Background(), "https://youtu.be/dQw4w9WgXcQ"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without analyzer, got %v", err)
	}
}

func TestStatusCombinesStoreAndJournal(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id := "analysis_2_abcdef12"
	e.seed(t, id, true)
	if _, err := e.journal.Begin(ctx, id, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := e.journal.Complete(ctx, id, []string{"transcription_unavailable: provider down"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	status, err := e.svc.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Exists || !status.HasTranscript || !status.HasScreenshot || !status.HasMetadata || status.HasAudio {
		t.Fatalf("unexpected presence flags %+v", status)
	}
	if status.State != string(journal.StatusDegraded) || !status.Degraded {
		t.Fatalf("expected degraded journal state, got %+v", status)
	}
	if status.VideoInfo == nil || status.VideoInfo.Title != "Never Gonna" {
		t.Fatalf("expected video info, got %+v", status.VideoInfo)
	}
}

func TestStatusRunningAnalysisWithoutArtifacts(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id := "analysis_3_abcdef12"
	if _, err := e.journal.Begin(ctx, id, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := e.journal.SetStage(ctx, id, "transcribe"); err != nil {
		t.Fatalf("SetStage: %v", err)
	}

	status, err := e.svc.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Exists || status.State != string(journal.StatusRunning) || status.Stage != "transcribe" {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.CreatedAt == nil {
		t.Fatal("expected creation time from the journal")
	}
}

func TestStatusUnknownAndInvalidIDs(t *testing.T) {
	e := newEnv(t, nil)
	for _, id := range []string{"analysis_404_ffffffff", "../etc/passwd"} {
		status, err := e.svc.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status(%q): %v", id, err)
		}
		if status.Exists || status.State != "" {
			t.Fatalf("expected empty status for %q, got %+v", id, status)
		}
	}
	if _, err := e.svc.Status(context.Background(), ""); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty id, got %v", err)
	}
}

func TestResultViews(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id := "analysis_4_abcdef12"
	e.seed(t, id, true)

	result, err := e.svc.Result(ctx, id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(result.Transcript.Sentences()) != 5 || result.Metadata == nil || result.Screenshot == nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Files[artifacts.KindScreenshot] != "/uploads/screenshots/"+id+".jpg" {
		t.Fatalf("unexpected screenshot url %q", result.Files[artifacts.KindScreenshot])
	}

	doc, err := e.svc.Transcript(ctx, id)
	if err != nil || doc.Metadata.TotalSentences != 5 || !doc.Metadata.HasAIProbability {
		t.Fatalf("Transcript: %+v, %v", doc, err)
	}
	shot, err := e.svc.Screenshot(ctx, id)
	if err != nil || shot.Size != 3 {
		t.Fatalf("Screenshot: %+v, %v", shot, err)
	}
	meta, err := e.svc.Metadata(ctx, id)
	if err != nil || meta.VideoInfo.Author != "Rick" {
		t.Fatalf("Metadata: %+v, %v", meta, err)
	}
}

func TestSummaryFromMetadata(t *testing.T) {
	e := newEnv(t, nil)
	id := "analysis_5_abcdef12"
	e.seed(t, id, true)

	summary, err := e.svc.Summary(context.Background(), id)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalSentences != 5 || summary.AIGeneratedSentences != 2 || summary.HumanGeneratedSentences != 2 || summary.UncertainSentences != 1 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if diff := summary.AverageAIProbability - 0.49; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected average 0.49, got %v", summary.AverageAIProbability)
	}
	if !summary.Degraded || summary.ProcessedAt == nil {
		t.Fatalf("expected degraded flag and processed time, got %+v", summary)
	}
}

func TestSummaryWithoutMetadataRecomputes(t *testing.T) {
	e := newEnv(t, nil)
	id := "analysis_6_abcdef12"
	e.seed(t, id, false)

	summary, err := e.svc.Summary(context.Background(), id)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.AnalyzedSentences != 5 || summary.AIGeneratedSentences != 2 || summary.VideoInfo != nil {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := e.svc.Metadata(context.Background(), id); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found metadata, got %v", err)
	}
}

func TestLookupsOfUnknownIDAreNotFound(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id := "analysis_7_abcdef12"
	checks := map[string]func() error{
		"result":     func() error { _, err := e.svc.Result(ctx, id); return err },
		"transcript": func() error { _, err := e.svc.Transcript(ctx, id); return err },
		"screenshot": func() error { _, err := e.svc.Screenshot(ctx, id); return err },
		"metadata":   func() error { _, err := e.svc.Metadata(ctx, id); return err },
		"summary":    func() error { _, err := e.svc.Summary(ctx, id); return err },
		"invalid":    func() error { _, err := e.svc.Result(ctx, "not valid!"); return err },
	}
	for name, check := range checks {
		err := check()
		if !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
		if services.HTTPStatus(err) != 404 {
			t.Fatalf("%s: expected 404, got %d", name, services.HTTPStatus(err))
		}
	}
}

func TestListAndDelete(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id := "analysis_8_abcdef12"
	e.seed(t, id, true)
	if _, err := e.journal.Begin(ctx, id, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	list, err := e.svc.List(ctx)
	if err != nil || list.Count != 1 || list.Analyses[0].ID != id || list.Analyses[0].Title != "Never Gonna" {
		t.Fatalf("List: %+v, %v", list, err)
	}

	deleted, err := e.svc.Delete(ctx, id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted.Success || deleted.DeletedCount != 3 || !deleted.JournalRemoved {
		t.Fatalf("unexpected delete %+v", deleted)
	}

	again, err := e.svc.Delete(ctx, id)
	if err != nil || !again.Success || again.DeletedCount != 0 || again.JournalRemoved {
		t.Fatalf("repeat delete: %+v, %v", again, err)
	}
	list, err = e.svc.List(ctx)
	if err != nil || list.Count != 0 {
		t.Fatalf("expected empty list, got %+v, %v", list, err)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.seed(t, "analysis_9_abcdef12", true)
	if _, err := e.journal.Begin(ctx, "analysis_10_abcdef12", "u", "dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	health := e.svc.Health(ctx, false)
	if !health.Healthy || health.Storage.Results != 1 || health.Storage.Screenshots != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.Analyses[string(journal.StatusRunning)] != 1 {
		t.Fatalf("expected journal counts, got %+v", health.Analyses)
	}
	deep := e.svc.Health(ctx, true)
	if deep.Healthy || len(deep.Checks) != 2 {
		t.Fatalf("expected deep failure, got %+v", deep)
	}
}

func TestNewAnalysisServiceRequiresStore(t *testing.T) {
	svc, err := api.NewAnalysisService(api.Deps{})
	if err == nil || svc != nil {
		t.Fatalf("expected error without a store, got %v (%v)", svc, err)
	}
}
