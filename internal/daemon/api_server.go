package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tubelens/internal/api"
	"tubelens/internal/logging"
	"tubelens/internal/observe"
	"tubelens/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	service *api.AnalysisService
	metrics *observe.Metrics

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

type serverOptions struct {
	Bind           string
	Token          string
	PublicPrefix   string
	UploadDirs     map[string]string
	MetricsPath    string
	MetricsHandler http.Handler
}

func newAPIServer(opts serverOptions, svc *api.AnalysisService, metrics *observe.Metrics, logger *slog.Logger) *apiServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = observe.Nop()
	}
	srv := &apiServer{
		bind:    strings.TrimSpace(opts.Bind),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		service: svc,
		metrics: metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", srv.handleAnalyze)
	mux.HandleFunc("GET /analyze/status/{id}", srv.handleStatus)
	mux.HandleFunc("GET /analyze/list", srv.handleList)
	mux.HandleFunc("DELETE /analyze/{id}", srv.handleDelete)
	mux.HandleFunc("GET /analyze/health", srv.handleHealth)
	mux.HandleFunc("GET /result/{id}", srv.handleResult)
	mux.HandleFunc("GET /result/{id}/transcript", srv.handleTranscript)
	mux.HandleFunc("GET /result/{id}/screenshot", srv.handleScreenshot)
	mux.HandleFunc("GET /result/{id}/metadata", srv.handleMetadata)
	mux.HandleFunc("GET /result/{id}/summary", srv.handleSummary)

	prefix := strings.TrimRight(opts.PublicPrefix, "/")
	for segment, dir := range opts.UploadDirs {
		if dir == "" {
			continue
		}
		route := prefix + "/" + segment + "/"
		mux.Handle("GET "+route, http.StripPrefix(route, http.FileServer(noListing{http.Dir(dir)})))
	}

	// Liveness and metrics stay reachable without the API token.
	root := http.NewServeMux()
	root.HandleFunc("GET /health", srv.handleLiveness)
	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		root.Handle("GET "+path, opts.MetricsHandler)
	}
	root.Handle("/", authMiddleware(opts.Token, mux))
	srv.handler = srv.instrument(root)

	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// instrument stamps a request id and records latency by route pattern.
func (s *apiServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(services.WithRequestID(r.Context(), requestID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTP(r.Context(), r.Method, route, rec.status, elapsed)
		s.logger.Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("elapsed", elapsed),
			logging.String("request_id", requestID),
		)
	})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req api.AnalyzeRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, services.Wrap(services.ErrInvalidInput, "api", "decode request", "request body must be JSON with youtubeUrl", err))
		return
	}
	resp, err := s.service.Analyze(r.Context(), req.YoutubeURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{Success: true, Status: status})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse{Success: true, ListView: list})
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	deep := queryFlag(r, "deep")
	health := s.service.Health(r.Context(), deep)
	status := http.StatusOK
	if !health.Healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, api.HealthResponse{Success: health.Healthy, Health: health})
}

func (s *apiServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, api.ResultResponse{Success: true, ResultView: result})
		return
	}
	s.writeText(w, http.StatusOK, api.RenderResult(result))
}

func (s *apiServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.service.Transcript(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TranscriptResponse{Success: true, AnalysisID: id, Transcript: doc})
}

func (s *apiServer) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	shot, err := s.service.Screenshot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, shot.URL, http.StatusFound)
}

func (s *apiServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meta, err := s.service.Metadata(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MetadataResponse{Success: true, AnalysisID: id, Metadata: meta})
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SummaryResponse{Success: true, Summary: summary})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	resp := api.ErrorResponse{Error: services.RootCause(err)}
	if stage, ok := services.FailedStage(err); ok {
		resp.Stage = stage
		resp.Message = "Analysis failed. Please try again."
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, resp)
}

func wantsJSON(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func queryFlag(r *http.Request, name string) bool {
	value := strings.TrimSpace(r.URL.Query().Get(name))
	return value == "1" || strings.EqualFold(value, "true")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// noListing hides directory indexes from the artifact file server.
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
