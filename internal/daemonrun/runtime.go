package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tubelens/internal/api"
	"tubelens/internal/artifacts"
	"tubelens/internal/audio"
	"tubelens/internal/capture"
	"tubelens/internal/config"
	"tubelens/internal/detector"
	"tubelens/internal/journal"
	"tubelens/internal/logging"
	"tubelens/internal/observe"
	"tubelens/internal/pipeline"
	"tubelens/internal/preflight"
	"tubelens/internal/stt"
)

// Runtime holds the wired components shared by the server and the CLI.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *observe.Metrics
	Store        *artifacts.Store
	Journal      *journal.Store
	Orchestrator *pipeline.Orchestrator
	Service      *api.AnalysisService
}

// Build wires configuration into a runnable analysis stack. A nil metrics
// value records nothing.
func Build(cfg *config.Config, logger *slog.Logger, metrics *observe.Metrics) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = observe.Nop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store := artifacts.NewFromConfig(cfg)
	jr, err := journal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	sttClient := stt.NewClient(stt.ConfigFromSettings(cfg), stt.WithLogger(logger))
	detectorClient := detector.NewClient(detector.ConfigFromSettings(cfg))
	scorer := detector.ScorerFromConfig(cfg, detectorClient, logger,
		detector.WithErrorObserver(func(error) { metrics.RecordDetectorError(context.Background()) }),
	)

	orchestrator, err := pipeline.New(pipeline.Dependencies{
		Launcher:      capture.NewChromeLauncher(capture.ChromeOptionsFromConfig(cfg)),
		Capturer:      capture.NewAdapter(store, capture.OptionsFromConfig(cfg), logger),
		Acquirer:      audio.AcquirerFromConfig(cfg, nil, logger),
		Transcoder:    audio.TranscoderFromConfig(cfg, nil, logger),
		Transcriber:   sttClient,
		Scorer:        scorer,
		Store:         store,
		Journal:       jr,
		Metrics:       metrics,
		Logger:        logger,
		DetectorModel: detectorClient.Model(),
	}, pipeline.OptionsFromConfig(cfg))
	if err != nil {
		_ = jr.Close()
		return nil, err
	}

	service, err := api.NewAnalysisService(api.Deps{
		Analyzer: orchestrator,
		Store:    store,
		Journal:  jr,
		Health:   HealthFunc(cfg),
		Logger:   logger,
	})
	if err != nil {
		_ = jr.Close()
		return nil, err
	}

	return &Runtime{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Store:        store,
		Journal:      jr,
		Orchestrator: orchestrator,
		Service:      service,
	}, nil
}

// Close releases the journal.
func (r *Runtime) Close() error {
	if r == nil || r.Journal == nil {
		return nil
	}
	return r.Journal.Close()
}

// HealthFunc runs the local preflight checks and, when deep is set, the
// provider connectivity checks.
func HealthFunc(cfg *config.Config) api.HealthFunc {
	return func(ctx context.Context, deep bool) preflight.Report {
		report := preflight.RunAll(ctx, cfg)
		if deep {
			report = report.Merge(preflight.CheckProviders(ctx, cfg)...)
		}
		return report
	}
}
