package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tubelens/internal/api"
	"tubelens/internal/artifacts"
	"tubelens/internal/config"
	"tubelens/internal/journal"
	"tubelens/internal/observe"
	"tubelens/internal/pipeline"
	"tubelens/internal/preflight"
	"tubelens/internal/services"
	"tubelens/internal/testsupport"
	"tubelens/internal/transcript"
)

type stubAnalyzer struct {
	result *pipeline.Result
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, string) (*pipeline.Result, error) {
	return s.result, s.err
}

type fixture struct {
	cfg     *config.Config
	store   *artifacts.Store
	journal *journal.Store
	handler http.Handler
}

func newFixture(t *testing.T, analyzer api.Analyzer, opts ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, opt := range opts {
		opt(cfg)
	}
	store := artifacts.NewFromConfig(cfg)
	jr := testsupport.MustOpenJournal(t, cfg)
	svc, err := api.NewAnalysisService(api.Deps{
		Analyzer: analyzer,
		Store:    store,
		Journal:  jr,
		Health: func(context.Context, bool) preflight.Report {
			return preflight.Report{Healthy: true, Checks: []preflight.Result{{Name: "yt-dlp", Passed: true}}}
		},
	})
	if err != nil {
		t.Fatalf("NewAnalysisService: %v", err)
	}
	provider, err := observe.InitProvider("test")
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	d, err := New(cfg, Deps{
		Service:        svc,
		Store:          store,
		Journal:        jr,
		Metrics:        provider.Metrics,
		MetricsHandler: provider.Handler,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{cfg: cfg, store: store, journal: jr, handler: d.Handler()}
}

func (f *fixture) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *fixture) seed(t *testing.T, id string) {
	t.Helper()
	sentences := []transcript.Sentence{
		{Text: "hello world.", Start: 0, End: 1, AIProbability: transcript.Probability(0.9), Classification: transcript.ClassAIGenerated},
		{Text: "bye.", Start: 1.2, End: 1.6, AIProbability: transcript.Probability(0.1), Classification: transcript.ClassHumanGenerated},
	}
	if _, _, err := f.store.SaveTranscript(id, sentences); err != nil {
		t.Fatalf("SaveTranscript: %v", err)
	}
	summary := transcript.Summarize(sentences)
	meta := artifacts.Metadata{ID: id, VideoInfo: artifacts.VideoInfo{Title: "Clip", Author: "Someone"}, Summary: &summary, Final: true}
	if _, _, err := f.store.SaveMetadata(id, meta); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}
	if _, err := f.store.SaveScreenshot(id, []byte{0xff, 0xd8, 0xff, 0xe0}); err != nil {
		t.Fatalf("SaveScreenshot: %v", err)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAnalyzeEndpoint(t *testing.T) {
	result := &pipeline.Result{ID: "analysis_1_abcdef12", URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", VideoID: "dQw4w9WgXcQ"}
	f := newFixture(t, stubAnalyzer{result: result})

	w := f.do(t, http.MethodPost, "/analyze", `{"youtubeUrl":"https://youtu.be/dQw4w9WgXcQ"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[api.AnalyzeResponse](t, w)
	if !resp.Success || resp.AnalysisID != result.ID || resp.ResultURL != "/result/"+result.ID {
		t.Fatalf("unexpected response %+v", resp)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	invalid := services.Wrap(services.ErrInvalidInput, "validate", "parse url", "not a YouTube URL", nil)
	f := newFixture(t, stubAnalyzer{err: invalid})

	w := f.do(t, http.MethodPost, "/analyze", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing url, got %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/analyze", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
	w = f.do(t, http.MethodPost, "/analyze", `{"youtubeUrl":"https://example.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid url, got %d", w.Code)
	}
	resp := decode[api.ErrorResponse](t, w)
	if resp.Success || !strings.Contains(resp.Error, "not a YouTube URL") {
		t.Fatalf("unexpected error body %+v", resp)
	}

	failed := services.StageFailure("capture", services.Wrap(services.ErrExternalTool, "capture", "screenshot", "video is not playable", nil))
	f = newFixture(t, stubAnalyzer{err: failed})
	w = f.do(t, http.MethodPost, "/analyze", `{"youtubeUrl":"https://youtu.be/dQw4w9WgXcQ"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	resp = decode[api.ErrorResponse](t, w)
	if resp.Stage != "capture" || !strings.Contains(resp.Error, "video is not playable") {
		t.Fatalf("expected stage and root cause, got %+v", resp)
	}
}

func TestResultEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	id := "analysis_2_abcdef12"
	f.seed(t, id)

	w := f.do(t, http.MethodGet, "/result/"+id+"?format=json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("result json: %d %s", w.Code, w.Body.String())
	}
	result := decode[api.ResultResponse](t, w)
	if !result.Success || result.ResultView == nil || len(result.Transcript.Sentences()) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	w = f.do(t, http.MethodGet, "/result/"+id, "", "Accept", "text/html")
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") || !strings.Contains(w.Body.String(), "hello world.") {
		t.Fatalf("expected text rendering, got %q", w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/result/"+id+"/transcript", "")
	transcriptResp := decode[api.TranscriptResponse](t, w)
	if transcriptResp.AnalysisID != id || transcriptResp.Transcript.Metadata.TotalSentences != 2 {
		t.Fatalf("unexpected transcript %+v", transcriptResp)
	}

	w = f.do(t, http.MethodGet, "/result/"+id+"/metadata", "")
	metaResp := decode[api.MetadataResponse](t, w)
	if metaResp.Metadata == nil || metaResp.Metadata.VideoInfo.Title != "Clip" {
		t.Fatalf("unexpected metadata %+v", metaResp)
	}

	w = f.do(t, http.MethodGet, "/result/"+id+"/summary", "")
	summaryResp := decode[api.SummaryResponse](t, w)
	if summaryResp.Summary.AIGeneratedSentences != 1 || summaryResp.Summary.HumanGeneratedSentences != 1 {
		t.Fatalf("unexpected summary %+v", summaryResp.Summary)
	}

	w = f.do(t, http.MethodGet, "/result/"+id+"/screenshot", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/uploads/screenshots/"+id+".jpg" {
		t.Fatalf("expected redirect to screenshot, got %d %q", w.Code, w.Header().Get("Location"))
	}
	w = f.do(t, http.MethodGet, "/uploads/screenshots/"+id+".jpg", "")
	if w.Code != http.StatusOK || w.Body.Len() != 4 {
		t.Fatalf("expected screenshot bytes, got %d len=%d", w.Code, w.Body.Len())
	}
}

func TestUploadsServeLargeFilesWithoutListing(t *testing.T) {
	f := newFixture(t, nil)
	testsupport.WriteFile(t, filepath.Join(f.cfg.Paths.AudioDir, "analysis_3_abcdef12.wav"), 96*1024)

	w := f.do(t, http.MethodGet, "/uploads/audio/analysis_3_abcdef12.wav", "")
	if w.Code != http.StatusOK || w.Body.Len() != 96*1024 {
		t.Fatalf("expected audio file, got %d len=%d", w.Code, w.Body.Len())
	}
	w = f.do(t, http.MethodGet, "/uploads/audio/", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected directory listing to be hidden, got %d", w.Code)
	}
}

func TestNotFoundResults(t *testing.T) {
	f := newFixture(t, nil)
	for _, path := range []string{
		"/result/analysis_9_abcdef12",
		"/result/analysis_9_abcdef12/transcript",
		"/result/analysis_9_abcdef12/screenshot",
		"/result/analysis_9_abcdef12/metadata",
		"/result/analysis_9_abcdef12/summary",
	} {
		w := f.do(t, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestStatusListDeleteHealth(t *testing.T) {
	f := newFixture(t, nil)
	id := "analysis_4_abcdef12"
	f.seed(t, id)

	w := f.do(t, http.MethodGet, "/analyze/status/"+id, "")
	status := decode[api.StatusResponse](t, w)
	if !status.Success || !status.Status.Exists || !status.Status.HasScreenshot {
		t.Fatalf("unexpected status %+v", status.Status)
	}

	w = f.do(t, http.MethodGet, "/analyze/list", "")
	list := decode[api.ListResponse](t, w)
	if list.Count != 1 || list.Analyses[0].ID != id {
		t.Fatalf("unexpected list %+v", list)
	}

	w = f.do(t, http.MethodDelete, "/analyze/"+id, "")
	deleted := decode[api.DeleteView](t, w)
	if !deleted.Success || deleted.DeletedCount != 3 {
		t.Fatalf("unexpected delete %+v", deleted)
	}
	w = f.do(t, http.MethodDelete, "/analyze/"+id, "")
	deleted = decode[api.DeleteView](t, w)
	if w.Code != http.StatusOK || deleted.DeletedCount != 0 {
		t.Fatalf("expected idempotent delete, got %d %+v", w.Code, deleted)
	}

	w = f.do(t, http.MethodGet, "/analyze/health", "")
	health := decode[api.HealthResponse](t, w)
	if w.Code != http.StatusOK || !health.Health.Healthy {
		t.Fatalf("unexpected health %d %+v", w.Code, health.Health)
	}

	w = f.do(t, http.MethodGet, "/analyze/list", "", "Authorization", "Bearer ignored")
	if w.Code != http.StatusOK {
		t.Fatalf("expected open access without token, got %d", w.Code)
	}
}

func TestAuthTokenRequired(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) {
		cfg.Paths.APIToken = "s3cret"
		cfg.Metrics.Enabled = true
	})

	if w := f.do(t, http.MethodGet, "/analyze/list", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/analyze/list", "", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/analyze/list", "", "Authorization", "Bearer s3cret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Fatalf("expected metrics without token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("expected liveness without token, got %d", w.Code)
	}
}

func TestLivenessSkipsAuthWithoutMetrics(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) {
		cfg.Paths.APIToken = "s3cret"
	})

	if w := f.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("expected liveness without token, got %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/analyze/health", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for detailed health without token, got %d", w.Code)
	}
}

func TestMetricsEndpointRecordsRequests(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) { cfg.Metrics.Enabled = true })
	f.do(t, http.MethodGet, "/analyze/list", "")

	w := f.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "tubelens_http_request_duration") || !strings.Contains(body, `route="GET /analyze/list"`) {
		t.Fatalf("expected http metrics in scrape output:\n%s", body)
	}
}

func TestMetricsDisabledByDefault(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.do(t, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when metrics are disabled, got %d", w.Code)
	}
}

func TestLiveness(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/health", "")
	body := decode[map[string]any](t, w)
	if body["status"] != "OK" {
		t.Fatalf("unexpected liveness %+v", body)
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Fatalf("bad timestamp: %v", err)
	}
}
