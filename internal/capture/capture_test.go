package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"tubelens/internal/artifacts"
	"tubelens/internal/logging"
	"tubelens/internal/services"
)

type fakeSession struct {
	mu         sync.Mutex
	navigated  []string
	navErr     error
	waitErr    error
	metadata   any
	metaErr    error
	playable   bool
	screenshot []byte
	shotErr    error
	quality    int
	closed     int
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return f.navErr
}

func (f *fakeSession) WaitReady(ctx context.Context, selector string) error {
	if f.waitErr != nil {
		return f.waitErr
	}
	if selector != playerSelector {
		return errors.New("unexpected selector " + selector)
	}
	return nil
}

func (f *fakeSession) Evaluate(ctx context.Context, script string, out any) error {
	var value any
	switch script {
	case metadataScript:
		if f.metaErr != nil {
			return f.metaErr
		}
		value = f.metadata
	case playableScript:
		value = f.playable
	default:
		return errors.New("unexpected script")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (f *fakeSession) Screenshot(ctx context.Context, quality int) ([]byte, error) {
	f.quality = quality
	return f.screenshot, f.shotErr
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeLauncher struct {
	session *fakeSession
	opens   int
	err     error
}

func (l *fakeLauncher) Open(context.Context) (Session, error) {
	l.opens++
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

func newTestAdapter(t *testing.T) (*Adapter, *artifacts.Store) {
	t.Helper()
	dir := t.TempDir()
	store := artifacts.NewStore(artifacts.Layout{
		ScreenshotsDir: dir + "/screenshots",
		AudioDir:       dir + "/audio",
		ResultsDir:     dir + "/results",
	})
	adapter := NewAdapter(store, Options{
		NavigationTimeout: time.Second,
		MetadataTimeout:   time.Second,
		PlayerTimeout:     time.Second,
		SettleDelay:       time.Hour,
		Quality:           80,
	}, logging.NewNop())
	adapter.WithSleeper(func(context.Context, time.Duration) error { return nil })
	return adapter, store
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		url  string
		id   string
		ok   bool
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch with params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"padded", "  https://youtu.be/dQw4w9WgXcQ  ", "dQw4w9WgXcQ", true},
		{"empty", "", "", false},
		{"no id", "https://www.youtube.com/", "", false},
		{"short id", "https://www.youtube.com/watch?v=abc", "", false},
		{"not a url", "hello world", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := Validate(tc.url)
			if !tc.ok {
				if !errors.Is(err, services.ErrInvalidInput) {
					t.Fatalf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if target.VideoID != tc.id {
				t.Fatalf("video id = %q, want %q", target.VideoID, tc.id)
			}
			if target.CanonicalURL != "https://www.youtube.com/watch?v="+tc.id {
				t.Fatalf("canonical url = %q", target.CanonicalURL)
			}
		})
	}
}

func TestCaptureSavesScreenshotAndMetadata(t *testing.T) {
	adapter, store := newTestAdapter(t)
	session := &fakeSession{
		metadata: map[string]string{
			"title":    "  A Talk  ",
			"author":   "Someone",
			"views":    "1,234 views",
			"duration": "1:02:03",
		},
		playable:   true,
		screenshot: []byte{0xff, 0xd8, 0xff},
	}
	target, _ := Validate("https://youtu.be/dQw4w9WgXcQ")

	result, err := adapter.Capture(context.Background(), session, target, "analysis_1")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if result.VideoInfo.Title != "A Talk" || result.VideoInfo.Author != "Someone" {
		t.Fatalf("unexpected info %+v", result.VideoInfo)
	}
	if result.VideoInfo.ViewCount != 1234 || result.VideoInfo.Duration != 3723 {
		t.Fatalf("unexpected counts %+v", result.VideoInfo)
	}
	if result.VideoInfo.Defaulted {
		t.Fatal("expected scraped metadata")
	}
	if session.quality != 80 {
		t.Fatalf("quality = %d", session.quality)
	}
	if len(session.navigated) != 1 || session.navigated[0] != target.CanonicalURL {
		t.Fatalf("navigated to %v", session.navigated)
	}
	if result.Screenshot.Filename != "analysis_1.jpg" {
		t.Fatalf("screenshot filename = %q", result.Screenshot.Filename)
	}
	if _, ok := store.Path(artifacts.KindScreenshot, "analysis_1"); !ok {
		t.Fatal("expected screenshot on disk")
	}
}

func TestCaptureDefaultsMetadataOnScrapeFailure(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	session := &fakeSession{metaErr: errors.New("boom"), playable: true, screenshot: []byte{1}}

	result, err := adapter.Capture(context.Background(), session, Target{CanonicalURL: "u"}, "analysis_2")
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	info := result.VideoInfo
	if info.Title != UnknownTitle || info.Author != UnknownAuthor || info.Duration != 0 || !info.Defaulted {
		t.Fatalf("expected defaults, got %+v", info)
	}
}

func TestCaptureFailsWhenNotPlayable(t *testing.T) {
	adapter, store := newTestAdapter(t)
	session := &fakeSession{metadata: map[string]string{}, playable: false, screenshot: []byte{1}}

	_, err := adapter.Capture(context.Background(), session, Target{CanonicalURL: "u"}, "analysis_3")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "not playable") {
		t.Fatalf("unexpected message %v", err)
	}
	if _, ok := store.Path(artifacts.KindScreenshot, "analysis_3"); ok {
		t.Fatal("no screenshot should be stored")
	}
}

func TestCaptureNavigationFailure(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	session := &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	_, err := adapter.Capture(context.Background(), session, Target{CanonicalURL: "u"}, "analysis_4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestCaptureStepTimeout(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	adapter.opts.PlayerTimeout = 10 * time.Millisecond
	session := &blockingSession{fakeSession: &fakeSession{}}

	_, err := adapter.Capture(context.Background(), session, Target{CanonicalURL: "u"}, "analysis_5")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

type blockingSession struct {
	*fakeSession
}

func (b *blockingSession) WaitReady(ctx context.Context, selector string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestCaptureEmptyScreenshot(t *testing.T) {
	adapter, _ := newTestAdapter(t)
	session := &fakeSession{metadata: map[string]string{}, playable: true}

	if _, err := adapter.Capture(context.Background(), session, Target{CanonicalURL: "u"}, "analysis_6"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{
		"0:05":    5,
		"3:20":    200,
		"1:02:03": 3723,
		"":        0,
		"abc":     0,
		"1:xx":    0,
		"12":      0,
	}
	for in, want := range cases {
		if got := ParseClock(in); got != want {
			t.Errorf("ParseClock(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseViewCount(t *testing.T) {
	cases := map[string]int64{
		"1,234,567 views": 1234567,
		"987 views":       987,
		"1.2M views":      1200000,
		"15K views":       15000,
		"No views":        0,
		"":                0,
	}
	for in, want := range cases {
		if got := ParseViewCount(in); got != want {
			t.Errorf("ParseViewCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestLazySessionOpensOnceAndCloses(t *testing.T) {
	inner := &fakeSession{}
	launcher := &fakeLauncher{session: inner}
	lazy := NewLazySession(launcher)

	if lazy.Opened() {
		t.Fatal("should not open before use")
	}
	if err := lazy.Close(); err != nil {
		t.Fatalf("close unopened: %v", err)
	}
	if launcher.opens != 0 {
		t.Fatal("close must not launch a browser")
	}

	lazy = NewLazySession(launcher)
	ctx := context.Background()
	if err := lazy.Navigate(ctx, "a"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := lazy.Navigate(ctx, "b"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if launcher.opens != 1 {
		t.Fatalf("opens = %d, want 1", launcher.opens)
	}
	if err := lazy.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if inner.closed != 1 {
		t.Fatalf("inner closed %d times", inner.closed)
	}
	if err := lazy.Navigate(ctx, "c"); err == nil {
		t.Fatal("expected error after close")
	}
	if err := lazy.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if inner.closed != 1 {
		t.Fatal("second close must be a no-op")
	}
}

func TestLazySessionLaunchError(t *testing.T) {
	lazy := NewLazySession(&fakeLauncher{err: errors.New("no chrome")})
	if err := lazy.Navigate(context.Background(), "a"); err == nil {
		t.Fatal("expected launch error")
	}
	if lazy.Opened() {
		t.Fatal("failed launch should not count as opened")
	}
}

type sequenceLauncher struct {
	sessions []*fakeSession
	opens    int
}

func (l *sequenceLauncher) Open(context.Context) (Session, error) {
	s := l.sessions[l.opens]
	l.opens++
	return s, nil
}

func TestLazySessionRelaunchesAfterLostBrowser(t *testing.T) {
	crashed := &fakeSession{navErr: fmt.Errorf("%w: websocket closed", ErrSessionLost)}
	fresh := &fakeSession{}
	launcher := &sequenceLauncher{sessions: []*fakeSession{crashed, fresh}}
	lazy := NewLazySession(launcher)
	ctx := context.Background()

	if err := lazy.Navigate(ctx, "a"); !errors.Is(err, ErrSessionLost) {
		t.Fatalf("expected lost session error, got %v", err)
	}
	if crashed.closed != 1 {
		t.Fatalf("lost session closed %d times, want 1", crashed.closed)
	}
	if err := lazy.Navigate(ctx, "b"); err != nil {
		t.Fatalf("navigate after relaunch: %v", err)
	}
	if launcher.opens != 2 {
		t.Fatalf("opens = %d, want 2", launcher.opens)
	}
	if err := lazy.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if fresh.closed != 1 {
		t.Fatalf("fresh session closed %d times, want 1", fresh.closed)
	}
}

func TestLazySessionKeepsSessionOnPageError(t *testing.T) {
	inner := &fakeSession{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	launcher := &fakeLauncher{session: inner}
	lazy := NewLazySession(launcher)
	ctx := context.Background()

	_ = lazy.Navigate(ctx, "a")
	_ = lazy.Navigate(ctx, "b")
	if launcher.opens != 1 || inner.closed != 0 {
		t.Fatalf("page errors must reuse the session: opens=%d closed=%d", launcher.opens, inner.closed)
	}
}
