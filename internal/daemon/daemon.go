package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tubelens/internal/api"
	"tubelens/internal/config"
	"tubelens/internal/logging"
	"tubelens/internal/observe"
)

// Deps groups what the daemon serves. Store is needed only when retention is
// enabled; Journal and MetricsHandler are optional.
type Deps struct {
	Service        *api.AnalysisService
	Store          RetentionStore
	Journal        JournalRemover
	Metrics        *observe.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Daemon owns the HTTP server, the retention schedule, and the instance lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *apiServer
	sweeper *Sweeper

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running           bool      `json:"running"`
	Address           string    `json:"address,omitempty"`
	LockFilePath      string    `json:"lockFile"`
	JournalPath       string    `json:"journal"`
	RetentionSchedule string    `json:"retentionSchedule,omitempty"`
	StartedAt         time.Time `json:"startedAt,omitzero"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Service == nil {
		return nil, errors.New("daemon requires config and analysis service")
	}
	if cfg.Retention.Enabled && deps.Store == nil {
		return nil, errors.New("retention requires an artifact store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = deps.MetricsHandler
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.server = newAPIServer(serverOptions{
		Bind:         cfg.Paths.APIBind,
		Token:        cfg.Paths.APIToken,
		PublicPrefix: cfg.Paths.PublicPrefix,
		UploadDirs: map[string]string{
			"screenshots": cfg.Paths.ScreenshotsDir,
			"audio":       cfg.Paths.AudioDir,
			"results":     cfg.Paths.ResultsDir,
		},
		MetricsPath:    cfg.Metrics.Path,
		MetricsHandler: metricsHandler,
	}, deps.Service, deps.Metrics, logger)
	if cfg.Retention.Enabled {
		maxAge := time.Duration(cfg.Retention.MaxAgeDays) * 24 * time.Hour
		d.sweeper = NewSweeper(deps.Store, deps.Journal, maxAge, deps.Metrics, logger)
	}
	return d, nil
}

// Handler returns the fully wrapped HTTP handler.
func (d *Daemon) Handler() http.Handler {
	return d.server.handler
}

// Start acquires the instance lock, schedules retention, and starts listening.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tubelens server is already running for this data directory")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if d.sweeper != nil {
		if err := d.sweeper.Start(runCtx, d.cfg.Retention.Schedule); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}
	if err := d.server.start(runCtx); err != nil {
		d.sweeper.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("tubelens server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.addr()),
		logging.Bool("retention", d.sweeper != nil),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts down the server and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.stop()
	d.sweeper.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no server is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("tubelens server stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Address:      d.server.addr(),
		LockFilePath: d.lockPath,
		JournalPath:  d.cfg.JournalPath(),
	}
	if d.sweeper != nil {
		status.RetentionSchedule = d.cfg.Retention.Schedule
	}
	if status.Running {
		status.StartedAt = d.startedAt
	}
	return status
}
