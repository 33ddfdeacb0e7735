package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const entryColumns = "id, url, video_id, status, stage, degraded_reasons, error_message, failed_stage, created_at, updated_at, finished_at"

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// Begin records a new running analysis.
func (s *Store) Begin(ctx context.Context, id, url, videoID string) (*Entry, error) {
	ts := s.timestamp()
	if _, err := s.write(ctx,
		`INSERT INTO analyses (id, url, video_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, url, nullableString(videoID), StatusRunning, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}
	return s.Get(ctx, id)
}

// SetStage records the stage a running analysis has entered.
func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	if _, err := s.write(ctx,
		`UPDATE analyses SET stage = ?, updated_at = ? WHERE id = ? AND status = ?`,
		stage, s.timestamp(), id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return nil
}

// Complete closes an analysis as completed, or degraded when reasons are given.
func (s *Store) Complete(ctx context.Context, id string, degradedReasons []string) error {
	status := StatusCompleted
	var reasons any
	if len(degradedReasons) > 0 {
		status = StatusDegraded
		encoded, err := json.Marshal(degradedReasons)
		if err != nil {
			return fmt.Errorf("marshal degraded reasons: %w", err)
		}
		reasons = string(encoded)
	}
	ts := s.timestamp()
	if _, err := s.write(ctx,
		`UPDATE analyses SET status = ?, stage = NULL, degraded_reasons = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		status, reasons, ts, ts, id,
	); err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}
	return nil
}

// Fail closes an analysis as failed at stage with the given reason.
func (s *Store) Fail(ctx context.Context, id, stage, reason string) error {
	ts := s.timestamp()
	if _, err := s.write(ctx,
		`UPDATE analyses SET status = ?, failed_stage = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, nullableString(stage), nullableString(reason), ts, ts, id,
	); err != nil {
		return fmt.Errorf("fail analysis: %w", err)
	}
	return nil
}

// FailRunning marks every running entry as failed and returns how many changed.
func (s *Store) FailRunning(ctx context.Context, reason string) (int64, error) {
	ts := s.timestamp()
	res, err := s.write(ctx,
		`UPDATE analyses SET status = ?, failed_stage = stage, error_message = ?, updated_at = ?, finished_at = ? WHERE status = ?`,
		StatusFailed, reason, ts, ts, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail running analyses: %w", err)
	}
	return res.RowsAffected()
}

// Get fetches one entry, returning nil when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM analyses WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return entry, nil
}

// List returns entries newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM analyses`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Counts returns the number of entries per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM analyses GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// Remove deletes an entry and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.write(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		videoID     sql.NullString
		status      string
		stage       sql.NullString
		reasons     sql.NullString
		errMessage  sql.NullString
		failedStage sql.NullString
		createdRaw  string
		updatedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.URL,
		&videoID,
		&status,
		&stage,
		&reasons,
		&errMessage,
		&failedStage,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	entry.VideoID = videoID.String
	entry.Status = Status(status)
	entry.Stage = stage.String
	entry.ErrorMessage = errMessage.String
	entry.FailedStage = failedStage.String
	if reasons.Valid && reasons.String != "" {
		if err := json.Unmarshal([]byte(reasons.String), &entry.DegradedReasons); err != nil {
			return nil, fmt.Errorf("decode degraded reasons: %w", err)
		}
	}
	entry.CreatedAt = parseTime(createdRaw)
	entry.UpdatedAt = parseTime(updatedRaw)
	if finishedRaw.Valid {
		finished := parseTime(finishedRaw.String)
		entry.FinishedAt = &finished
	}
	return &entry, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
