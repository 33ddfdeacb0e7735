package capture

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tubelens/internal/artifacts"
	"tubelens/internal/config"
	"tubelens/internal/logging"
	"tubelens/internal/services"
)

const (
	stageName      = "capture"
	playerSelector = "#movie_player"

	// UnknownTitle and UnknownAuthor fill fields the page did not expose.
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

const metadataScript = `(() => {
  const text = (sel) => { const el = document.querySelector(sel); return el ? (el.innerText || el.content || '').trim() : ''; };
  const meta = (name) => { const el = document.querySelector('meta[name="' + name + '"], meta[itemprop="' + name + '"]'); return el ? (el.content || '').trim() : ''; };
  return {
    title: text('h1.title') || text('h1.ytd-watch-metadata') || meta('title'),
    author: text('#channel-name a') || text('ytd-channel-name a') || meta('author'),
    views: text('.view-count') || text('#info span.view-count') || meta('interactionCount'),
    duration: text('.ytp-time-duration')
  };
})()`

const playableScript = `(() => {
  const player = document.querySelector('#movie_player');
  return !!player && !player.classList.contains('unplayable');
})()`

// ScreenshotSaver persists screenshots.
type ScreenshotSaver interface {
	SaveScreenshot(id string, data []byte) (artifacts.Artifact, error)
}

// Options bounds each browser step.
type Options struct {
	NavigationTimeout time.Duration
	MetadataTimeout   time.Duration
	PlayerTimeout     time.Duration
	SettleDelay       time.Duration
	Quality           int
}

// OptionsFromConfig maps the [browser] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		NavigationTimeout: cfg.NavigationTimeout(),
		MetadataTimeout:   cfg.MetadataTimeout(),
		PlayerTimeout:     cfg.PlayerTimeout(),
		SettleDelay:       cfg.SettleDelay(),
		Quality:           cfg.Browser.ScreenshotQuality,
	}
}

// Result is the outcome of a capture.
type Result struct {
	VideoInfo  artifacts.VideoInfo `json:"videoInfo"`
	Screenshot artifacts.Artifact  `json:"screenshot"`
}

// Adapter captures video metadata and the player screenshot.
type Adapter struct {
	store  ScreenshotSaver
	opts   Options
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewAdapter builds a capture adapter.
func NewAdapter(store ScreenshotSaver, opts Options, logger *slog.Logger) *Adapter {
	return &Adapter{
		store:  store,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "capture"),
		sleep:  sleepContext,
	}
}

// WithSleeper replaces the settle-delay sleeper (for tests).
func (a *Adapter) WithSleeper(sleep func(context.Context, time.Duration) error) *Adapter {
	if sleep != nil {
		a.sleep = sleep
	}
	return a
}

// Capture loads the watch page, scrapes metadata on a best-effort basis, waits
// for the player to become playable, and stores a screenshot. A player that
// never becomes playable fails the capture.
func (a *Adapter) Capture(ctx context.Context, session Session, target Target, analysisID string) (*Result, error) {
	logger := logging.WithContext(ctx, a.logger)

	if err := a.bounded(ctx, a.opts.NavigationTimeout, func(ctx context.Context) error {
		return session.Navigate(ctx, target.CanonicalURL)
	}); err != nil {
		return nil, stepError("navigate", "failed to load watch page", err)
	}

	if err := a.bounded(ctx, a.opts.PlayerTimeout, func(ctx context.Context) error {
		return session.WaitReady(ctx, playerSelector)
	}); err != nil {
		return nil, stepError("wait player", "player did not appear", err)
	}
	if err := a.sleep(ctx, a.opts.SettleDelay); err != nil {
		return nil, stepError("settle", "interrupted while waiting for player", err)
	}

	info := a.scrapeMetadata(ctx, session)
	if info.Defaulted {
		logging.WarnWithContext(logger, "video metadata unavailable; using defaults", "metadata_default",
			logging.String(logging.FieldImpact, "title, author, and duration show placeholders"))
	}

	var playable bool
	if err := a.bounded(ctx, a.opts.PlayerTimeout, func(ctx context.Context) error {
		return session.Evaluate(ctx, playableScript, &playable)
	}); err != nil {
		return nil, stepError("check player", "could not read player state", err)
	}
	if !playable {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "check player", "video is not playable", nil)
	}

	var shot []byte
	if err := a.bounded(ctx, a.opts.NavigationTimeout, func(ctx context.Context) error {
		var err error
		shot, err = session.Screenshot(ctx, a.opts.Quality)
		return err
	}); err != nil {
		return nil, stepError("screenshot", "screenshot failed", err)
	}
	if len(shot) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "screenshot", "browser returned an empty screenshot", nil)
	}

	artifact, err := a.store.SaveScreenshot(analysisID, shot)
	if err != nil {
		return nil, err
	}
	logger.Info("screenshot captured",
		logging.String("title", info.Title),
		logging.Int64("bytes", artifact.Size),
	)
	return &Result{VideoInfo: info, Screenshot: artifact}, nil
}

type rawMetadata struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Views    string `json:"views"`
	Duration string `json:"duration"`
}

func (a *Adapter) scrapeMetadata(ctx context.Context, session Session) artifacts.VideoInfo {
	var raw rawMetadata
	if err := a.bounded(ctx, a.opts.MetadataTimeout, func(ctx context.Context) error {
		return session.Evaluate(ctx, metadataScript, &raw)
	}); err != nil {
		a.logger.Debug("metadata scrape failed", logging.Error(err))
		return DefaultVideoInfo()
	}
	return videoInfoFromRaw(raw)
}

// DefaultVideoInfo is used when the page exposes no metadata.
func DefaultVideoInfo() artifacts.VideoInfo {
	return artifacts.VideoInfo{Title: UnknownTitle, Author: UnknownAuthor, Defaulted: true}
}

func videoInfoFromRaw(raw rawMetadata) artifacts.VideoInfo {
	info := artifacts.VideoInfo{
		Title:     strings.TrimSpace(raw.Title),
		Author:    strings.TrimSpace(raw.Author),
		Views:     strings.TrimSpace(raw.Views),
		ViewCount: ParseViewCount(raw.Views),
		Duration:  ParseClock(raw.Duration),
	}
	if info.Title == "" {
		info.Title = UnknownTitle
	}
	if info.Author == "" {
		info.Author = UnknownAuthor
	}
	return info
}

// ParseClock converts "m:ss" or "h:mm:ss" to seconds. Anything else is 0.
func ParseClock(text string) int {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// ParseViewCount extracts the digits of a rendered view count such as
// "1,234,567 views". Abbreviated counts ("1.2M views") scale accordingly.
func ParseViewCount(text string) int64 {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return 0
	}
	token := strings.ToUpper(fields[0])
	multiplier := 1.0
	switch {
	case strings.HasSuffix(token, "K"):
		multiplier, token = 1e3, strings.TrimSuffix(token, "K")
	case strings.HasSuffix(token, "M"):
		multiplier, token = 1e6, strings.TrimSuffix(token, "M")
	case strings.HasSuffix(token, "B"):
		multiplier, token = 1e9, strings.TrimSuffix(token, "B")
	}
	if multiplier == 1 {
		var digits strings.Builder
		for _, r := range token {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		n, err := strconv.ParseInt(digits.String(), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
	if err != nil || value < 0 {
		return 0
	}
	return int64(value * multiplier)
}

func (a *Adapter) bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(stepCtx)
	if err != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return services.Wrap(services.ErrTimeout, stageName, "browser step", "timed out after "+timeout.String(), err)
	}
	return err
}

func stepError(operation, message string, err error) error {
	if errors.Is(err, services.ErrTimeout) {
		return services.Wrap(services.ErrTimeout, stageName, operation, message, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrExternalTool, stageName, operation, message, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
