package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubelens/internal/config"
	"tubelens/internal/services"
)

const (
	stageName          = "score"
	defaultBaseURL     = "https://api-inference.huggingface.co/models"
	defaultModel       = "roberta-base-openai-detector"
	defaultHTTPTimeout = 30 * time.Second
	userAgent          = "tubelens/1.0"

	// ProbeSentence is scored by CheckConnection.
	ProbeSentence = "This is a test sentence."
)

// Config captures the detector endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ConfigFromSettings maps the [detection] section.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		APIKey:  cfg.Detection.APIKey,
		BaseURL: cfg.Detection.BaseURL,
		Model:   cfg.Detection.Model,
		Timeout: time.Duration(cfg.Detection.TimeoutSeconds) * time.Second,
	}
}

// Client calls the inference endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a detector client.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.Trim(strings.TrimSpace(cfg.Model), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Score is one classifier verdict.
type Score struct {
	AIProbability float64 `json:"ai_probability"`
	Label         string  `json:"label,omitempty"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Detect classifies text and returns the probability that it is machine
// generated.
func (c *Client) Detect(ctx context.Context, text string) (Score, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Score{}, services.Wrap(services.ErrValidation, stageName, "detect", "empty text", nil)
	}
	if c.cfg.APIKey == "" {
		return Score{}, services.Wrap(services.ErrConfiguration, stageName, "authenticate", "detection.api_key is not set", nil)
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, strings.Split(c.cfg.Model, "/")...)
	if err != nil {
		return Score{}, services.Wrap(services.ErrConfiguration, stageName, "build url", c.cfg.BaseURL, err)
	}
	encoded, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return Score{}, fmt.Errorf("detector request: encode body: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Score{}, fmt.Errorf("detector request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Score{}, services.Wrap(services.ErrTimeout, stageName, "detect", fmt.Sprintf("request exceeded %s", c.cfg.Timeout), err)
		}
		return Score{}, services.Wrap(services.ErrExternalTool, stageName, "detect", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Score{}, services.Wrap(services.ErrExternalTool, stageName, "detect", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Score{}, services.Wrap(services.ErrExternalTool, stageName, "detect",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	score, err := ParseResponse(body)
	if err != nil {
		return Score{}, services.Wrap(services.ErrExternalTool, stageName, "decode response", "unexpected detector payload", err)
	}
	return score, nil
}

// CheckConnection scores ProbeSentence.
func (c *Client) CheckConnection(ctx context.Context) error {
	_, err := c.Detect(ctx, ProbeSentence)
	return err
}

// ParseResponse accepts the shapes the inference API returns: a nested
// numeric array whose first value is the probability, or label/score pairs
// either flat or nested one level.
func ParseResponse(body []byte) (Score, error) {
	var numeric [][]float64
	if err := json.Unmarshal(body, &numeric); err == nil && len(numeric) > 0 && len(numeric[0]) > 0 {
		return clampScore(Score{AIProbability: numeric[0][0]}), nil
	}
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return fromLabels(nested[0])
	}
	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return fromLabels(flat)
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return Score{}, errors.New(apiErr.Error)
	}
	return Score{}, errors.New("no scores in response")
}

func fromLabels(labels []labelScore) (Score, error) {
	for _, entry := range labels {
		if isMachineLabel(entry.Label) {
			return clampScore(Score{AIProbability: entry.Score, Label: entry.Label}), nil
		}
	}
	for _, entry := range labels {
		if isHumanLabel(entry.Label) {
			return clampScore(Score{AIProbability: 1 - entry.Score, Label: entry.Label}), nil
		}
	}
	return Score{}, fmt.Errorf("unrecognized labels %q", labels[0].Label)
}

func isMachineLabel(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "fake", "ai", "machine", "generated", "chatgpt", "label_0":
		return true
	}
	return false
}

func isHumanLabel(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "real", "human", "label_1":
		return true
	}
	return false
}

func clampScore(s Score) Score {
	switch {
	case s.AIProbability < 0:
		s.AIProbability = 0
	case s.AIProbability > 1:
		s.AIProbability = 1
	}
	return s
}
