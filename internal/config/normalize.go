package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBrowser()
	if err := c.normalizeAudio(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeDetection()
	c.normalizePipeline()
	c.normalizeRetention()
	c.normalizeLogging()
	c.normalizeMetrics()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("TUBELENS_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	subdirs := []struct {
		key      string
		target   *string
		fallback string
	}{
		{"paths.screenshots_dir", &c.Paths.ScreenshotsDir, defaultScreenshotsSubdir},
		{"paths.audio_dir", &c.Paths.AudioDir, defaultAudioSubdir},
		{"paths.results_dir", &c.Paths.ResultsDir, defaultResultsSubdir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogSubdir},
	}
	for _, sub := range subdirs {
		if strings.TrimSpace(*sub.target) == "" {
			*sub.target = filepath.Join(c.Paths.DataDir, sub.fallback)
		}
		if *sub.target, err = expandPath(*sub.target); err != nil {
			return fmt.Errorf("%s: %w", sub.key, err)
		}
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TUBELENS_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicPrefix = "/" + strings.Trim(strings.TrimSpace(c.Paths.PublicPrefix), "/")
	if c.Paths.PublicPrefix == "/" {
		c.Paths.PublicPrefix = defaultPublicPrefix
	}
	return nil
}

func (c *Config) normalizeBrowser() {
	c.Browser.ExecPath = strings.TrimSpace(c.Browser.ExecPath)
	c.Browser.UserAgent = strings.TrimSpace(c.Browser.UserAgent)
	if c.Browser.UserAgent == "" {
		c.Browser.UserAgent = defaultUserAgent
	}
	if c.Browser.ViewportWidth <= 0 {
		c.Browser.ViewportWidth = defaultViewportWidth
	}
	if c.Browser.ViewportHeight <= 0 {
		c.Browser.ViewportHeight = defaultViewportHeight
	}
	if c.Browser.ScreenshotQuality <= 0 || c.Browser.ScreenshotQuality > 100 {
		c.Browser.ScreenshotQuality = defaultScreenshotQuality
	}
	if c.Browser.SettleDelayMillis < 0 {
		c.Browser.SettleDelayMillis = 0
	}
}

func (c *Config) normalizeAudio() error {
	c.Audio.YtDlpBinary = defaultString(c.Audio.YtDlpBinary, defaultYtDlpBinary)
	c.Audio.FFmpegBinary = defaultString(c.Audio.FFmpegBinary, defaultFFmpegBinary)
	c.Audio.FFprobeBinary = defaultString(c.Audio.FFprobeBinary, defaultFFprobeBinary)
	if strings.TrimSpace(c.Audio.WorkDir) == "" {
		c.Audio.WorkDir = filepath.Join(os.TempDir(), "tubelens")
	}
	var err error
	if c.Audio.WorkDir, err = expandPath(c.Audio.WorkDir); err != nil {
		return fmt.Errorf("audio.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv("ELEVENLABS_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}
	c.Transcription.BaseURL = strings.TrimRight(defaultString(c.Transcription.BaseURL, defaultTranscriptionBaseURL), "/")
	c.Transcription.ModelID = defaultString(c.Transcription.ModelID, defaultTranscriptionModel)
}

func (c *Config) normalizeDetection() {
	c.Detection.APIKey = strings.TrimSpace(c.Detection.APIKey)
	if c.Detection.APIKey == "" {
		if value, ok := os.LookupEnv("HUGGINGFACE_API_KEY"); ok {
			c.Detection.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Detection.APIKey = strings.TrimSpace(value)
		}
	}
	c.Detection.BaseURL = strings.TrimRight(defaultString(c.Detection.BaseURL, defaultDetectionBaseURL), "/")
	c.Detection.Model = defaultString(c.Detection.Model, defaultDetectionModel)
	if c.Detection.Burst <= 0 {
		c.Detection.Burst = defaultDetectionBurst
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.RetryBaseDelayMs < 0 {
		c.Pipeline.RetryBaseDelayMs = 0
	}
	if c.Pipeline.RetryMaxDelayMs < c.Pipeline.RetryBaseDelayMs {
		c.Pipeline.RetryMaxDelayMs = c.Pipeline.RetryBaseDelayMs
	}
	if c.Pipeline.AnalysisTimeout < 0 {
		c.Pipeline.AnalysisTimeout = 0
	}
}

func (c *Config) normalizeRetention() {
	c.Retention.Schedule = defaultString(c.Retention.Schedule, defaultRetentionSchedule)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = "/" + c.Metrics.Path
	}
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
