package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tubelens/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.ScreenshotsDir = filepath.Join(base, "screenshots")
	cfgVal.Paths.AudioDir = filepath.Join(base, "audio")
	cfgVal.Paths.ResultsDir = filepath.Join(base, "results")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Audio.WorkDir = filepath.Join(base, "work")
	cfgVal.Transcription.APIKey = "test-stt"
	cfgVal.Detection.APIKey = "test-hf"
	cfgVal.Pipeline.RetryBaseDelayMs = 0
	cfgVal.Pipeline.RetryMaxDelayMs = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithProviderKeys sets the transcription and detection keys on the test config.
func WithProviderKeys(stt, detector string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.APIKey = stt
		b.cfg.Detection.APIKey = detector
	}
}

// WithProviderURLs points both providers at test servers.
func WithProviderURLs(stt, detector string) ConfigOption {
	return func(b *configBuilder) {
		if stt != "" {
			b.cfg.Transcription.BaseURL = stt
		}
		if detector != "" {
			b.cfg.Detection.BaseURL = detector
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default tubelens external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
