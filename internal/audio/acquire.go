package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tubelens/internal/config"
	"tubelens/internal/logging"
	"tubelens/internal/services"
)

const acquireStage = "acquire"

// AcquireOptions configures the yt-dlp download.
type AcquireOptions struct {
	Binary    string
	WorkDir   string
	UserAgent string
	Timeout   time.Duration
}

// Acquirer downloads the audio track of a watch URL.
type Acquirer struct {
	opts   AcquireOptions
	run    Runner
	logger *slog.Logger
}

// NewAcquirer builds an acquirer. A nil runner executes the real binary.
func NewAcquirer(opts AcquireOptions, run Runner, logger *slog.Logger) *Acquirer {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "yt-dlp"
	}
	if run == nil {
		run = execRunner
	}
	return &Acquirer{opts: opts, run: run, logger: logging.NewComponentLogger(logger, "audio")}
}

// AcquirerFromConfig maps the [audio] and [browser] sections.
func AcquirerFromConfig(cfg *config.Config, run Runner, logger *slog.Logger) *Acquirer {
	return NewAcquirer(AcquireOptions{
		Binary:    cfg.Audio.YtDlpBinary,
		WorkDir:   cfg.Audio.WorkDir,
		UserAgent: cfg.Browser.UserAgent,
		Timeout:   cfg.DownloadTimeout(),
	}, run, logger)
}

// Args returns the yt-dlp arguments for a download to outputTemplate.
func (a *Acquirer) Args(canonicalURL, outputTemplate string) []string {
	args := []string{
		"-x",
		"--audio-format", "wav",
		"--audio-quality", "0",
		"--no-playlist",
		"--no-progress",
		"--no-check-certificates",
		"--extractor-args", "youtube:player_client=android",
	}
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		args = append(args, "--user-agent", ua)
	}
	return append(args, "-o", outputTemplate, canonicalURL)
}

// Acquire downloads the audio for canonicalURL and returns the raw bytes. The
// scratch file is removed before returning.
func (a *Acquirer) Acquire(ctx context.Context, canonicalURL, analysisID string) ([]byte, error) {
	workDir := a.opts.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "tubelens")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, acquireStage, "prepare work dir", workDir, err)
	}
	scratch, err := os.MkdirTemp(workDir, analysisID+"-")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, acquireStage, "prepare work dir", workDir, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			a.logger.Warn("scratch cleanup failed", logging.String("path", scratch), logging.Error(err))
		}
	}()

	runCtx := ctx
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	template := filepath.Join(scratch, "audio.%(ext)s")
	started := time.Now()
	output, err := a.run(runCtx, a.opts.Binary, a.Args(canonicalURL, template)...)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, services.Wrap(services.ErrTimeout, acquireStage, "yt-dlp", fmt.Sprintf("download exceeded %s", a.opts.Timeout), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, acquireStage, "yt-dlp", strings.TrimSpace(tail(output)), err)
	}

	path, err := findDownload(scratch)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, acquireStage, "locate download", "yt-dlp produced no audio file", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, acquireStage, "read download", path, err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, acquireStage, "read download", "downloaded audio is empty", nil)
	}
	logging.WithContext(ctx, a.logger).Info("audio downloaded",
		logging.Int("bytes", len(data)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return data, nil
}

// findDownload prefers audio.wav and otherwise returns the only file yt-dlp left.
func findDownload(dir string) (string, error) {
	preferred := filepath.Join(dir, "audio.wav")
	if info, err := os.Stat(preferred); err == nil && !info.IsDir() {
		return preferred, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		return filepath.Join(dir, entry.Name()), nil
	}
	return "", os.ErrNotExist
}
