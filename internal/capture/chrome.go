package capture

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"tubelens/internal/config"
)

// ChromeOptions configures launched browsers.
type ChromeOptions struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Width     int
	Height    int
}

// ChromeOptionsFromConfig maps the [browser] section.
func ChromeOptionsFromConfig(cfg *config.Config) ChromeOptions {
	return ChromeOptions{
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
		UserAgent: cfg.Browser.UserAgent,
		Width:     cfg.Browser.ViewportWidth,
		Height:    cfg.Browser.ViewportHeight,
	}
}

// ChromeLauncher starts a Chrome process per session via chromedp.
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher builds a launcher.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	return &ChromeLauncher{opts: opts}
}

// Open launches Chrome and returns a session bound to a new tab. The browser
// lives until Close, independent of ctx.
func (l *ChromeLauncher) Open(ctx context.Context) (Session, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.NoFirstRun,
		chromedp.WindowSize(l.opts.Width, l.opts.Height),
	)
	if l.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(l.opts.UserAgent))
	}
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	session := &chromeSession{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	// The first Run allocates the browser and ties it to the context it is
	// given, so it must run on browserCtx itself rather than a derived one.
	stop := context.AfterFunc(ctx, session.cancel)
	err := chromedp.Run(browserCtx, chromedp.EmulateViewport(int64(l.opts.Width), int64(l.opts.Height)))
	stop()
	if err != nil {
		session.cancel()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("launch browser: %w", ctx.Err())
		}
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return session, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab while honouring the caller's deadline and
// cancellation.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case s.ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) WaitReady(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out))
}

func (s *chromeSession) Screenshot(ctx context.Context, quality int) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithQuality(int64(quality)).
			Do(ctx)
		return err
	}))
	return buf, err
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
