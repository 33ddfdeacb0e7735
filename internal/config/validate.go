package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable. Missing provider keys are not
// fatal: the pipeline degrades instead, and the health probe reports them.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	seen := map[string]string{}
	for key, dir := range map[string]string{
		"paths.screenshots_dir": c.Paths.ScreenshotsDir,
		"paths.audio_dir":       c.Paths.AudioDir,
		"paths.results_dir":     c.Paths.ResultsDir,
	} {
		if other, ok := seen[dir]; ok {
			return fmt.Errorf("%s and %s must be distinct directories", other, key)
		}
		seen[dir] = key
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"browser.navigation_timeout":    c.Browser.NavigationTimeout,
		"browser.metadata_timeout":      c.Browser.MetadataTimeout,
		"browser.player_timeout":        c.Browser.PlayerTimeout,
		"audio.download_timeout":        c.Audio.DownloadTimeout,
		"audio.transcode_timeout":       c.Audio.TranscodeTimeout,
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
		"transcription.max_upload_mb":   c.Transcription.MaxUploadMB,
		"detection.timeout_seconds":     c.Detection.TimeoutSeconds,
	})
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return errors.New("audio.sample_rate must be between 8000 and 192000")
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return errors.New("audio.channels must be 1 or 2")
	}
	if c.Audio.BitDepth != 16 {
		return errors.New("audio.bit_depth must be 16 (pcm_s16le)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.CaptureAttempts < 1 {
		return errors.New("pipeline.capture_attempts must be at least 1")
	}
	if c.Pipeline.AcquireAttempts < 1 {
		return errors.New("pipeline.acquire_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.RequestsPerSecond < 0 {
		return errors.New("detection.requests_per_second must be >= 0")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if !c.Retention.Enabled {
		return nil
	}
	if c.Retention.MaxAgeDays <= 0 {
		return errors.New("retention.max_age_days must be positive when retention.enabled is true")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Retention.Schedule); err != nil {
		return fmt.Errorf("retention.schedule: %w", err)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
