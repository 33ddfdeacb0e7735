package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"tubelens/internal/artifacts"
	"tubelens/internal/config"
	"tubelens/internal/logging"
	"tubelens/internal/services"
	"tubelens/internal/transcript"
)

const (
	// Source tags transcripts produced by this client.
	Source = "elevenlabs"

	stageName          = "transcribe"
	defaultBaseURL     = "https://api.elevenlabs.io/v1"
	defaultModelID     = "scribe_v1"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxUpload   = 1000 << 20
	maxErrorBody       = 2048
)

// Config captures the provider settings.
type Config struct {
	APIKey         string
	BaseURL        string
	ModelID        string
	Timeout        time.Duration
	MaxUploadBytes int64
}

// ConfigFromSettings maps the [transcription] section.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		APIKey:         cfg.Transcription.APIKey,
		BaseURL:        cfg.Transcription.BaseURL,
		ModelID:        cfg.Transcription.ModelID,
		Timeout:        time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
		MaxUploadBytes: int64(cfg.Transcription.MaxUploadMB) << 20,
	}
}

// Client is the ElevenLabs speech-to-text client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "stt")
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.ModelID = strings.TrimSpace(cfg.ModelID)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured model id.
func (c *Client) Model() string {
	return c.cfg.ModelID
}

// Result is a mapped provider response.
type Result struct {
	Words    []transcript.Word `json:"words,omitempty"`
	Text     string            `json:"text,omitempty"`
	Duration float64           `json:"duration"`
	Language string            `json:"language,omitempty"`
	Model    string            `json:"model"`
}

// Sentences segments the result: by words when present, otherwise by text
// with timings spread across the total duration.
func (r *Result) Sentences() []transcript.Sentence {
	if r == nil {
		return []transcript.Sentence{}
	}
	if len(r.Words) > 0 {
		return transcript.Segment(r.Words)
	}
	return transcript.SegmentText(r.Text, r.Duration)
}

// Info describes the result for analysis metadata.
func (r *Result) Info() *artifacts.TranscriptionInfo {
	return &artifacts.TranscriptionInfo{
		Source:    Source,
		Model:     r.Model,
		WordCount: len(r.Words),
		Duration:  r.Duration,
	}
}

type providerWord struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Type      string  `json:"type"`
	SpeakerID string  `json:"speaker_id"`
	Speaker   string  `json:"speaker"`
}

type providerResponse struct {
	Text         string         `json:"text"`
	LanguageCode string         `json:"language_code"`
	Duration     float64        `json:"duration"`
	Words        []providerWord `json:"words"`
}

// Transcribe uploads audio and maps the response. Empty audio, audio above
// the size ceiling, and provider failures are transcription errors.
func (c *Client) Transcribe(ctx context.Context, audio []byte, analysisID string) (*Result, error) {
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrTranscription, stageName, "validate audio", "empty audio buffer", nil)
	}
	if int64(len(audio)) > c.cfg.MaxUploadBytes {
		return nil, services.Wrap(services.ErrTranscription, stageName, "validate audio",
			fmt.Sprintf("audio is %d bytes, provider limit is %d", len(audio), c.cfg.MaxUploadBytes), nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "authenticate", "transcription.api_key is not set", nil)
	}

	body, contentType, err := c.encodeUpload(audio, analysisID)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "encode upload", "", err)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "speech-to-text")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "build url", c.cfg.BaseURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "new request", "", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	payload, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var parsed providerResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "decode response", "invalid response from provider", err)
	}
	result := mapResponse(parsed, c.cfg.ModelID)
	if len(result.Words) == 0 && strings.TrimSpace(result.Text) == "" {
		return nil, services.Wrap(services.ErrTranscription, stageName, "decode response", "provider returned no words or text", nil)
	}
	logging.WithContext(ctx, c.logger).Info("transcription complete",
		logging.Int("words", len(result.Words)),
		logging.Float64("duration_seconds", result.Duration),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// CheckConnection verifies the API key against the account endpoint.
func (c *Client) CheckConnection(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "check connection", "transcription.api_key is not set", nil)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "user")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "build url", c.cfg.BaseURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrTranscription, stageName, "new request", "", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, services.Wrap(services.ErrTimeout, stageName, "http", fmt.Sprintf("request exceeded %s", c.cfg.Timeout), err)
		}
		return nil, services.Wrap(services.ErrTranscription, stageName, "http", "request failed", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, stageName, "read body", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTranscription, stageName, "http",
			fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(payload)), nil)
	}
	return payload, nil
}

func (c *Client) encodeUpload(audio []byte, analysisID string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("model_id", c.cfg.ModelID); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("timestamps_granularity", "word"); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("diarize", "true"); err != nil {
		return nil, "", err
	}
	header := make(textproto.MIMEHeader)
	filename := analysisID
	if filename == "" {
		filename = "audio"
	}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.wav"`, filename))
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func mapResponse(resp providerResponse, model string) *Result {
	result := &Result{
		Text:     norm.NFC.String(strings.TrimSpace(resp.Text)),
		Duration: resp.Duration,
		Language: resp.LanguageCode,
		Model:    model,
		Words:    make([]transcript.Word, 0, len(resp.Words)),
	}
	for _, w := range resp.Words {
		if strings.EqualFold(w.Type, "spacing") || strings.EqualFold(w.Type, "audio_event") {
			continue
		}
		text := norm.NFC.String(strings.TrimSpace(w.Text))
		if text == "" {
			continue
		}
		speaker := w.SpeakerID
		if speaker == "" {
			speaker = w.Speaker
		}
		result.Words = append(result.Words, transcript.Word{
			Text:    text,
			Start:   w.Start,
			End:     w.End,
			Speaker: speaker,
		})
	}
	if n := len(result.Words); n > 0 && result.Duration <= 0 {
		result.Duration = result.Words[n-1].End
	}
	return result
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
