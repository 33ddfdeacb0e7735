package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tubelens/internal/artifacts"
	"tubelens/internal/config"
	"tubelens/internal/logging"
	"tubelens/internal/media/ffprobe"
	"tubelens/internal/services"
)

const transcodeStage = "transcode"

// TranscodeOptions sets the normalized output format.
type TranscodeOptions struct {
	FFmpegBinary  string
	FFprobeBinary string
	WorkDir       string
	SampleRate    int
	Channels      int
	Timeout       time.Duration
}

// Transcoded is the normalized waveform with before/after descriptions.
type Transcoded struct {
	Normalized []byte
	Original   *artifacts.AudioInfo
	Converted  *artifacts.AudioInfo
}

// Transcoder converts arbitrary audio into PCM WAV.
type Transcoder struct {
	opts   TranscodeOptions
	run    Runner
	logger *slog.Logger
}

// NewTranscoder builds a transcoder. A nil runner executes the real binaries.
func NewTranscoder(opts TranscodeOptions, run Runner, logger *slog.Logger) *Transcoder {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if run == nil {
		run = execRunner
	}
	return &Transcoder{opts: opts, run: run, logger: logging.NewComponentLogger(logger, "audio")}
}

// TranscoderFromConfig maps the [audio] section.
func TranscoderFromConfig(cfg *config.Config, run Runner, logger *slog.Logger) *Transcoder {
	return NewTranscoder(TranscodeOptions{
		FFmpegBinary:  cfg.Audio.FFmpegBinary,
		FFprobeBinary: cfg.Audio.FFprobeBinary,
		WorkDir:       cfg.Audio.WorkDir,
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.Channels,
		Timeout:       cfg.TranscodeTimeout(),
	}, run, logger)
}

// Args returns the ffmpeg arguments converting input to a 16-bit PCM WAV.
func (t *Transcoder) Args(input, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vn",
		"-ac", strconv.Itoa(t.opts.Channels),
		"-ar", strconv.Itoa(t.opts.SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		output,
	}
}

// Transcode normalizes data. Empty input is a validation error. Probe
// failures leave the corresponding description nil.
func (t *Transcoder) Transcode(ctx context.Context, data []byte) (*Transcoded, error) {
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, transcodeStage, "validate input", "no audio data to transcode", nil)
	}
	logger := logging.WithContext(ctx, t.logger)

	workDir := t.opts.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "tubelens")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, transcodeStage, "prepare work dir", workDir, err)
	}
	scratch, err := os.MkdirTemp(workDir, "transcode-")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, transcodeStage, "prepare work dir", workDir, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("scratch cleanup failed", logging.String("path", scratch), logging.Error(err))
		}
	}()

	input := filepath.Join(scratch, "input")
	output := filepath.Join(scratch, "output.wav")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, transcodeStage, "stage input", input, err)
	}

	result := &Transcoded{Original: t.describe(ctx, input)}

	runCtx := ctx
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	out, err := t.run(runCtx, t.opts.FFmpegBinary, t.Args(input, output)...)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, services.Wrap(services.ErrTimeout, transcodeStage, "ffmpeg", fmt.Sprintf("transcode exceeded %s", t.opts.Timeout), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExternalTool, transcodeStage, "ffmpeg", strings.TrimSpace(tail(out)), err)
	}

	normalized, err := os.ReadFile(output)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, transcodeStage, "read output", "ffmpeg produced no output", err)
	}
	result.Normalized = normalized
	result.Converted = t.describe(ctx, output)
	logger.Info("audio normalized",
		logging.Int("input_bytes", len(data)),
		logging.Int("output_bytes", len(normalized)),
		logging.Int("sample_rate", t.opts.SampleRate),
	)
	return result, nil
}

func (t *Transcoder) describe(ctx context.Context, path string) *artifacts.AudioInfo {
	probe, err := ffprobe.InspectWith(ctx, ffprobe.Runner(t.run), t.opts.FFprobeBinary, path)
	if err != nil {
		t.logger.Debug("audio probe failed", logging.String("path", path), logging.Error(err))
		return nil
	}
	return Describe(probe)
}

// Describe converts ffprobe output into the stored audio description.
func Describe(probe ffprobe.Result) *artifacts.AudioInfo {
	info := &artifacts.AudioInfo{
		Format:  probe.Format.FormatName,
		Size:    probe.SizeBytes(),
		Bitrate: probe.BitRate(),
	}
	if duration := probe.DurationSeconds(); duration > 0 {
		info.Duration = duration
	}
	if stream, ok := probe.PrimaryAudio(); ok {
		info.Codec = stream.CodecName
		info.SampleRate = stream.SampleRateHz()
		info.Channels = stream.Channels
	}
	return info
}
