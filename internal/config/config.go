package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir        string `toml:"data_dir"`
	ScreenshotsDir string `toml:"screenshots_dir"`
	AudioDir       string `toml:"audio_dir"`
	ResultsDir     string `toml:"results_dir"`
	LogDir         string `toml:"log_dir"`
	APIBind        string `toml:"api_bind"`
	PublicPrefix   string `toml:"public_prefix"`
	APIToken       string `toml:"api_token"`
}

// Browser contains headless browser settings for page capture.
type Browser struct {
	Headless          bool   `toml:"headless"`
	ExecPath          string `toml:"exec_path"`
	NavigationTimeout int    `toml:"navigation_timeout"`
	MetadataTimeout   int    `toml:"metadata_timeout"`
	PlayerTimeout     int    `toml:"player_timeout"`
	SettleDelayMillis int    `toml:"settle_delay_ms"`
	ViewportWidth     int    `toml:"viewport_width"`
	ViewportHeight    int    `toml:"viewport_height"`
	UserAgent         string `toml:"user_agent"`
	ScreenshotQuality int    `toml:"jpeg_quality"`
}

// Audio contains download and transcoding settings.
type Audio struct {
	YtDlpBinary      string `toml:"ytdlp_binary"`
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	FFprobeBinary    string `toml:"ffprobe_binary"`
	SampleRate       int    `toml:"sample_rate"`
	Channels         int    `toml:"channels"`
	BitDepth         int    `toml:"bit_depth"`
	DownloadTimeout  int    `toml:"download_timeout"`
	TranscodeTimeout int    `toml:"transcode_timeout"`
	WorkDir          string `toml:"work_dir"`
}

// Transcription contains speech-to-text provider settings.
type Transcription struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ModelID        string `toml:"model_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxUploadMB    int    `toml:"max_upload_mb"`
}

// Detection contains AI-text detector settings.
type Detection struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	Model             string  `toml:"model"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Pipeline contains the retry budget for the concurrent capture/acquisition pair.
type Pipeline struct {
	CaptureAttempts  int `toml:"capture_attempts"`
	AcquireAttempts  int `toml:"acquire_attempts"`
	RetryBaseDelayMs int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `toml:"retry_max_delay_ms"`
	AnalysisTimeout  int `toml:"analysis_timeout"`
}

// Retention controls the scheduled purge of old analyses.
type Retention struct {
	Enabled    bool   `toml:"enabled"`
	Schedule   string `toml:"schedule"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics controls the Prometheus scrape endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for tubelens.
//
// Configuration sections by subsystem:
//   - Paths: artifact namespaces, logs, and the API bind address
//   - Browser: headless capture of the watch page
//   - Audio: yt-dlp download and ffmpeg normalization
//   - Transcription: ElevenLabs speech-to-text
//   - Detection: Hugging Face AI-text detector
//   - Pipeline: retry budget for capture and acquisition
//   - Retention: scheduled deletion of old analyses
//   - Logging: log format and level
//   - Metrics: Prometheus endpoint
type Config struct {
	Paths         Paths         `toml:"paths"`
	Browser       Browser       `toml:"browser"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	Detection     Detection     `toml:"detection"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Retention     Retention     `toml:"retention"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tubelens/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is read
// first so provider keys can live outside the TOML file.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tubelens.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the artifact namespaces and the log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScreenshotsDir, c.Paths.AudioDir, c.Paths.ResultsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Audio.WorkDir) != "" {
		if err := os.MkdirAll(c.Audio.WorkDir, 0o755); err != nil {
			return fmt.Errorf("create audio work directory %q: %w", c.Audio.WorkDir, err)
		}
	}
	return nil
}

// JournalPath returns the location of the analysis status database.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, "journal.db")
}

// LockPath returns the location of the server instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tubelensd.lock")
}

// NavigationTimeout returns the browser navigation timeout.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Browser.NavigationTimeout) * time.Second
}

// MetadataTimeout returns the bounded wait for metadata scraping.
func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Browser.MetadataTimeout) * time.Second
}

// PlayerTimeout returns the bounded wait for the player to report playable.
func (c *Config) PlayerTimeout() time.Duration {
	return time.Duration(c.Browser.PlayerTimeout) * time.Second
}

// SettleDelay returns the pause between player readiness and the screenshot.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Browser.SettleDelayMillis) * time.Millisecond
}

// DownloadTimeout returns the yt-dlp timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Audio.DownloadTimeout) * time.Second
}

// TranscodeTimeout returns the ffmpeg/ffprobe timeout.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Audio.TranscodeTimeout) * time.Second
}

// AnalysisTimeout returns the overall bound for one orchestrated analysis, or 0 for none.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Pipeline.AnalysisTimeout) * time.Second
}

// MissingProviderKeys lists provider credentials that are not configured.
func (c *Config) MissingProviderKeys() []string {
	var missing []string
	if strings.TrimSpace(c.Transcription.APIKey) == "" {
		missing = append(missing, "transcription.api_key")
	}
	if strings.TrimSpace(c.Detection.APIKey) == "" {
		missing = append(missing, "detection.api_key")
	}
	return missing
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
