package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tubelens/internal/config"
	"tubelens/internal/services"
)

// Store is the analysis journal. The server and CLI processes may hold it open
// at the same time; writes that collide on the database lock are retried.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// lockedPolicy paces retries of writes rejected with SQLITE_BUSY while another
// process holds the write lock past busy_timeout.
var lockedPolicy = services.RetryPolicy{
	Attempts:  5,
	BaseDelay: 10 * time.Millisecond,
	MaxDelay:  200 * time.Millisecond,
}

const sqliteBusy = 5

func databaseLocked(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code()&0xff == sqliteBusy
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// write runs a mutating statement, retrying only lock contention.
func (s *Store) write(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return services.Retry(ctx, lockedPolicy, func(ctx context.Context, _ int) (sql.Result, error) {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil && !databaseLocked(err) {
			return nil, services.Permanent(err)
		}
		return res, err
	}, nil)
}

// Open opens the journal at the configured data directory.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.JournalPath())
}

// OpenPath opens or creates the journal database at dbPath. It never touches
// existing rows; recovery of interrupted runs is FailRunning's job.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
