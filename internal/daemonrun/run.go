package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tubelens/internal/config"
	"tubelens/internal/daemon"
	"tubelens/internal/journal"
	"tubelens/internal/logging"
	"tubelens/internal/observe"
	"tubelens/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the tubelens server and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	metrics := observe.Nop()
	var provider *observe.Provider
	if cfg.Metrics.Enabled {
		provider, err = observe.InitProvider(opts.Version)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
		metrics = provider.Metrics
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "tubelensd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(cfg, logger, metrics)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}
	defer rt.Close()

	deps := daemon.Deps{
		Service: rt.Service,
		Store:   rt.Store,
		Journal: rt.Journal,
		Metrics: metrics,
		Logger:  logger,
	}
	if provider != nil {
		deps.MetricsHandler = provider.Handler
	}
	d, err := daemon.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	if n, err := rt.Journal.FailRunning(signalCtx, journal.ServerStopReason); err != nil {
		logging.WarnWithContext(logger, "journal cleanup failed", "journal_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "analyses interrupted by the last shutdown still show as running"),
		)
	} else if n > 0 {
		logger.Info("interrupted analyses marked failed",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "journal_recovered"),
		)
	}

	<-signalCtx.Done()
	logger.Info("tubelens server shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("transcription_key_present", cfg.Transcription.APIKey != ""),
		logging.Bool("detection_key_present", cfg.Detection.APIKey != ""),
		logging.String("detector_model", cfg.Detection.Model),
	}
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		attrs = append(attrs,
			logging.Bool(dependencyKey(status.Name)+"_available", status.Available),
			logging.String(dependencyKey(status.Name)+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	if missing := cfg.MissingProviderKeys(); len(missing) > 0 {
		logging.WarnWithContext(logger, "provider keys missing", "provider_keys_missing",
			logging.Any("missing", missing),
			logging.String(logging.FieldImpact, "analyses will complete with degraded transcripts or unscored sentences"),
			logging.String(logging.FieldErrorHint, "set ELEVENLABS_API_KEY and HUGGINGFACE_API_KEY"),
		)
	}
}

func dependencyKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}
