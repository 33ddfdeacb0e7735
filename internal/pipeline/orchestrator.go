package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tubelens/internal/artifacts"
	"tubelens/internal/audio"
	"tubelens/internal/capture"
	"tubelens/internal/config"
	"tubelens/internal/logging"
	"tubelens/internal/observe"
	"tubelens/internal/services"
	"tubelens/internal/stt"
	"tubelens/internal/transcript"
)

// Dependencies wires the stage implementations.
type Dependencies struct {
	Launcher      capture.Launcher
	Capturer      Capturer
	Acquirer      Acquirer
	Transcoder    Transcoder
	Transcriber   Transcriber
	Scorer        Scorer
	Store         ArtifactStore
	Journal       Journal
	Metrics       *observe.Metrics
	Logger        *slog.Logger
	DetectorModel string
	Clock         func() time.Time
	NewID         func(time.Time) string
}

// Options bounds retries and the overall run.
type Options struct {
	CaptureRetry    services.RetryPolicy
	AcquireRetry    services.RetryPolicy
	AnalysisTimeout time.Duration
	// SilentFormat is declared by the stand-in audio used when acquisition fails.
	SilentFormat audio.Format
}

// OptionsFromConfig maps the [pipeline] section.
func OptionsFromConfig(cfg *config.Config) Options {
	base := time.Duration(cfg.Pipeline.RetryBaseDelayMs) * time.Millisecond
	maxDelay := time.Duration(cfg.Pipeline.RetryMaxDelayMs) * time.Millisecond
	return Options{
		CaptureRetry:    services.RetryPolicy{Attempts: cfg.Pipeline.CaptureAttempts, BaseDelay: base, MaxDelay: maxDelay},
		AcquireRetry:    services.RetryPolicy{Attempts: cfg.Pipeline.AcquireAttempts, BaseDelay: base, MaxDelay: maxDelay},
		AnalysisTimeout: cfg.AnalysisTimeout(),
		SilentFormat: audio.Format{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			BitDepth:   cfg.Audio.BitDepth,
		},
	}
}

// Orchestrator runs analyses. It is safe for concurrent use; each call owns
// its own browser session and artifact id.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
}

// New builds an orchestrator.
func New(deps Dependencies, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Launcher == nil:
		return nil, errors.New("pipeline: browser launcher is required")
	case deps.Capturer == nil:
		return nil, errors.New("pipeline: capturer is required")
	case deps.Acquirer == nil:
		return nil, errors.New("pipeline: acquirer is required")
	case deps.Transcoder == nil:
		return nil, errors.New("pipeline: transcoder is required")
	case deps.Transcriber == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case deps.Scorer == nil:
		return nil, errors.New("pipeline: scorer is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: artifact store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = NewAnalysisID
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// NewAnalysisID returns analysis_<unix ms>_<8 hex chars>.
func NewAnalysisID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("analysis_%d_%s", now.UnixMilli(), suffix)
}

// run is the state of one analysis.
type run struct {
	id       string
	target   capture.Target
	started  time.Time
	stage    string
	reasons  []string
	reasonMu sync.Mutex
	logger   *slog.Logger
}

func (r *run) degrade(code string, err error) {
	r.reasonMu.Lock()
	defer r.reasonMu.Unlock()
	r.reasons = append(r.reasons, code+": "+services.RootCause(err))
}

// Analyze runs the full pipeline for rawURL.
func (o *Orchestrator) Analyze(ctx context.Context, rawURL string) (*Result, error) {
	target, err := capture.Validate(rawURL)
	if err != nil {
		return nil, err
	}
	if o.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.AnalysisTimeout)
		defer cancel()
	}

	started := o.deps.Clock()
	r := &run{id: o.deps.NewID(started), target: target, started: started}
	ctx = services.WithAnalysisID(ctx, r.id)
	r.logger = logging.WithContext(ctx, o.logger)

	o.deps.Metrics.ActiveAnalyses.Add(ctx, 1)
	defer o.deps.Metrics.ActiveAnalyses.Add(context.WithoutCancel(ctx), -1)

	if o.deps.Journal != nil {
		if _, err := o.deps.Journal.Begin(ctx, r.id, target.CanonicalURL, target.VideoID); err != nil {
			r.logger.Warn("journal begin failed", logging.Error(err))
		}
	}
	r.logger.Info("analysis started",
		logging.String(logging.FieldEventType, "analysis_start"),
		logging.String("url", target.CanonicalURL),
		logging.String("video_id", target.VideoID),
	)

	session := capture.NewLazySession(o.deps.Launcher)
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("browser close failed", logging.Error(err))
		}
	}()

	result, err := o.execute(ctx, r, session)
	if err != nil {
		return nil, o.fail(ctx, r, err)
	}

	outcome := observe.OutcomeCompleted
	if result.Degraded {
		outcome = observe.OutcomeDegraded
	}
	o.deps.Metrics.RecordOutcome(ctx, outcome)
	if o.deps.Journal != nil {
		if err := o.deps.Journal.Complete(context.WithoutCancel(ctx), r.id, result.DegradedReasons); err != nil {
			r.logger.Warn("journal complete failed", logging.Error(err))
		}
	}
	r.logger.Info("analysis finished",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Bool("degraded", result.Degraded),
		logging.Int("sentences", result.Summary.TotalSentences),
		logging.Duration("elapsed", o.deps.Clock().Sub(started)),
	)
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, session capture.Session) (*Result, error) {
	var (
		captured *capture.Result
		rawAudio []byte
	)
	o.enter(ctx, r, StageCapture)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		res, err := timed(o, groupCtx, StageCapture, func(ctx context.Context) (*capture.Result, error) {
			return services.Retry(ctx, o.opts.CaptureRetry, func(ctx context.Context, _ int) (*capture.Result, error) {
				return o.deps.Capturer.Capture(ctx, session, r.target, r.id)
			}, o.retryLogger(r, StageCapture))
		})
		if err != nil {
			return services.StageFailure(StageCapture, err)
		}
		captured = res
		return nil
	})
	group.Go(func() error {
		data, err := timed(o, groupCtx, StageAcquire, func(ctx context.Context) ([]byte, error) {
			return services.Retry(ctx, o.opts.AcquireRetry, func(ctx context.Context, _ int) ([]byte, error) {
				return o.deps.Acquirer.Acquire(ctx, r.target.CanonicalURL, r.id)
			}, o.retryLogger(r, StageAcquire))
		})
		if err != nil {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			r.degrade(ReasonAudioUnavailable, err)
			o.deps.Metrics.RecordDegraded(ctx, ReasonAudioUnavailable)
			logging.WarnWithContext(r.logger, "audio acquisition failed; continuing with silent audio", "acquire_degraded",
				logging.Error(err),
				logging.String(logging.FieldImpact, "transcript will be a placeholder"),
				logging.String(logging.FieldErrorHint, "check yt-dlp is installed and up to date"),
			)
			return nil
		}
		rawAudio = data
		return nil
	})
	if err := group.Wait(); err != nil {
		if _, ok := services.FailedStage(err); !ok {
			err = services.StageFailure(StageAcquire, err)
		}
		return nil, err
	}

	audioAvailable := rawAudio != nil
	var section artifacts.AudioSection
	normalized := audio.SilentWAVFor(o.opts.SilentFormat)
	if audioAvailable {
		o.enter(ctx, r, StageTranscode)
		transcoded, err := timed(o, ctx, StageTranscode, func(ctx context.Context) (*audio.Transcoded, error) {
			return o.deps.Transcoder.Transcode(ctx, rawAudio)
		})
		if err != nil {
			return nil, services.StageFailure(StageTranscode, err)
		}
		normalized = transcoded.Normalized
		section = artifacts.AudioSection{Original: transcoded.Original, Converted: transcoded.Converted}
	}

	o.enter(ctx, r, StagePersist)
	audioArtifact, err := o.deps.Store.SaveAudio(r.id, normalized)
	if err != nil {
		return nil, services.StageFailure(StagePersist, err)
	}

	meta := artifacts.Metadata{
		URL:        r.target.CanonicalURL,
		VideoID:    r.target.VideoID,
		VideoInfo:  captured.VideoInfo,
		Screenshot: &captured.Screenshot,
		AudioFile:  &audioArtifact,
		Audio:      section,
		CreatedAt:  r.started,
	}
	r.applyDegraded(&meta)
	if _, _, err := o.deps.Store.SaveMetadata(r.id, meta); err != nil {
		return nil, services.StageFailure(StagePersist, err)
	}

	o.enter(ctx, r, StageTranscribe)
	sentences, info := o.transcribe(ctx, r, normalized, audioAvailable)
	meta.Transcription = info

	o.enter(ctx, r, StageScore)
	scored, err := timed(o, ctx, StageScore, func(ctx context.Context) (scoreOutput, error) {
		s, sum, err := o.deps.Scorer.Score(ctx, sentences)
		return scoreOutput{s, sum}, err
	})
	if err != nil {
		return nil, services.StageFailure(StageScore, err)
	}

	o.enter(ctx, r, StagePersist)
	transcriptArtifact, _, err := o.deps.Store.SaveTranscript(r.id, scored.sentences)
	if err != nil {
		return nil, services.StageFailure(StagePersist, err)
	}
	sum := scored.summary
	meta.Summary = &sum
	meta.AIAnalysis = &artifacts.AIAnalysisInfo{
		Model:                o.deps.DetectorModel,
		TotalSentences:       sum.TotalSentences,
		AnalyzedSentences:    sum.AnalyzedSentences,
		UnscoredSentences:    sum.UnscoredSentences,
		AverageAIProbability: sum.AverageAIProbability,
	}
	meta.Final = true
	meta.ProcessedAt = o.deps.Clock()
	r.applyDegraded(&meta)
	_, stored, err := o.deps.Store.SaveMetadata(r.id, meta)
	if err != nil {
		return nil, services.StageFailure(StagePersist, err)
	}

	return &Result{
		ID:              r.id,
		URL:             r.target.CanonicalURL,
		VideoID:         r.target.VideoID,
		VideoInfo:       captured.VideoInfo,
		Screenshot:      captured.Screenshot,
		AudioFile:       audioArtifact,
		TranscriptFile:  transcriptArtifact,
		Transcript:      scored.sentences,
		Summary:         sum,
		Metadata:        stored,
		Degraded:        len(r.reasons) > 0,
		DegradedReasons: append([]string(nil), r.reasons...),
	}, nil
}

type scoreOutput struct {
	sentences []transcript.Sentence
	summary   transcript.Summary
}

// transcribe never fails the run: provider errors and missing audio yield the
// placeholder transcript.
func (o *Orchestrator) transcribe(ctx context.Context, r *run, normalized []byte, audioAvailable bool) ([]transcript.Sentence, *artifacts.TranscriptionInfo) {
	var err error
	if audioAvailable {
		var result *stt.Result
		result, err = timed(o, ctx, StageTranscribe, func(ctx context.Context) (*stt.Result, error) {
			return o.deps.Transcriber.Transcribe(ctx, normalized, r.id)
		})
		if err == nil {
			sentences := result.Sentences()
			if len(sentences) > 0 {
				return sentences, result.Info()
			}
			err = services.Wrap(services.ErrTranscription, StageTranscribe, "segment", "transcript has no usable sentences", nil)
		}
	} else {
		err = services.Wrap(services.ErrTranscription, StageTranscribe, "skip", "no audio to transcribe", nil)
	}

	r.degrade(ReasonTranscriptionUnavailable, err)
	o.deps.Metrics.RecordDegraded(ctx, ReasonTranscriptionUnavailable)
	logging.WarnWithContext(r.logger, "transcription failed; using placeholder transcript", "transcribe_degraded",
		logging.Error(err),
		logging.String(logging.FieldImpact, "transcript and scores do not reflect the video"),
		logging.String(logging.FieldErrorHint, "check transcription.api_key and provider status"),
	)
	placeholder := transcript.Placeholder()
	return placeholder, &artifacts.TranscriptionInfo{
		Source:   transcript.PlaceholderSource,
		Note:     transcript.PlaceholderNote,
		Duration: placeholder[len(placeholder)-1].End,
		Error:    services.RootCause(err),
	}
}

func (r *run) applyDegraded(meta *artifacts.Metadata) {
	r.reasonMu.Lock()
	defer r.reasonMu.Unlock()
	meta.Degraded = len(r.reasons) > 0
	meta.DegradedReasons = append([]string(nil), r.reasons...)
}

func (o *Orchestrator) enter(ctx context.Context, r *run, stage string) {
	r.stage = stage
	if o.deps.Journal == nil {
		return
	}
	if err := o.deps.Journal.SetStage(ctx, r.id, stage); err != nil {
		r.logger.Debug("journal stage update failed", logging.String("stage", stage), logging.Error(err))
	}
}

func (o *Orchestrator) retryLogger(r *run, stage string) func(int, error) {
	return func(attempt int, err error) {
		r.logger.Warn("stage attempt failed; retrying",
			logging.String(logging.FieldStage, stage),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
	}
}

// timed runs fn under the stage context and records its latency.
func timed[T any](o *Orchestrator, ctx context.Context, stage string, fn func(context.Context) (T, error)) (T, error) {
	stageCtx := services.WithStage(ctx, stage)
	started := o.deps.Clock()
	value, err := fn(stageCtx)
	o.deps.Metrics.RecordStage(ctx, stage, o.deps.Clock().Sub(started), err)
	return value, err
}

// fail removes partial artifacts and records the failure. Cleanup errors are
// logged and dropped.
func (o *Orchestrator) fail(ctx context.Context, r *run, err error) error {
	cleanupCtx := context.WithoutCancel(ctx)
	stage, ok := services.FailedStage(err)
	if !ok {
		stage = r.stage
		err = services.StageFailure(stage, err)
	}
	if deleted, delErr := o.deps.Store.Delete(r.id); delErr != nil {
		r.logger.Warn("cleanup after failure incomplete", logging.Error(delErr))
	} else if deleted.DeletedCount > 0 {
		r.logger.Debug("removed partial artifacts", logging.Int("files", deleted.DeletedCount))
	}
	if o.deps.Journal != nil {
		if jErr := o.deps.Journal.Fail(cleanupCtx, r.id, stage, services.RootCause(err)); jErr != nil {
			r.logger.Warn("journal fail update failed", logging.Error(jErr))
		}
	}
	o.deps.Metrics.RecordOutcome(cleanupCtx, observe.OutcomeFailed)
	logging.ErrorWithContext(r.logger, "analysis failed", "analysis_failed",
		logging.String(logging.FieldStage, stage),
		logging.Error(err),
	)
	return err
}
