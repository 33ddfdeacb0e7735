package capture

import (
	"context"
	"errors"
	"sync"
)

// Session is one browser tab.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, script string, out any) error
	Screenshot(ctx context.Context, quality int) ([]byte, error)
	Close() error
}

// Launcher opens browser sessions.
type Launcher interface {
	Open(ctx context.Context) (Session, error)
}

// ErrSessionLost marks failures caused by the browser itself going away
// (crash, killed process) rather than by the page or the caller's context.
var ErrSessionLost = errors.New("browser session lost")

// LazySession opens its underlying session on first use and reuses it for
// later calls. A call failing with ErrSessionLost drops the session so the
// next call launches a fresh browser. Close is safe to call whether or not a
// session was opened.
type LazySession struct {
	launcher Launcher

	mu      sync.Mutex
	session Session
	opened  bool
	closed  bool
}

// NewLazySession wraps launcher.
func NewLazySession(launcher Launcher) *LazySession {
	return &LazySession{launcher: launcher}
}

func (l *LazySession) get(ctx context.Context) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, errSessionClosed
	}
	if l.session != nil {
		return l.session, nil
	}
	session, err := l.launcher.Open(ctx)
	if err != nil {
		return nil, err
	}
	l.session = session
	l.opened = true
	return session, nil
}

// drop releases s if it is still the current session.
func (l *LazySession) drop(s Session, err error) error {
	if err == nil || !errors.Is(err, ErrSessionLost) {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == s {
		_ = s.Close()
		l.session = nil
	}
	return err
}

// Opened reports whether a browser was launched.
func (l *LazySession) Opened() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opened
}

func (l *LazySession) Navigate(ctx context.Context, url string) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return l.drop(s, s.Navigate(ctx, url))
}

func (l *LazySession) WaitReady(ctx context.Context, selector string) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return l.drop(s, s.WaitReady(ctx, selector))
}

func (l *LazySession) Evaluate(ctx context.Context, script string, out any) error {
	s, err := l.get(ctx)
	if err != nil {
		return err
	}
	return l.drop(s, s.Evaluate(ctx, script, out))
}

func (l *LazySession) Screenshot(ctx context.Context, quality int) ([]byte, error) {
	s, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.Screenshot(ctx, quality)
	return data, l.drop(s, err)
}

// Close releases the browser if one was opened.
func (l *LazySession) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.session == nil {
		return nil
	}
	err := l.session.Close()
	l.session = nil
	return err
}

type sessionError string

func (e sessionError) Error() string { return string(e) }

const errSessionClosed = sessionError("browser session already closed")
