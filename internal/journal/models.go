package journal

import "time"

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
	StatusFailed    Status = "failed"
)

// ServerStopReason is recorded on entries still running when the server restarts.
const ServerStopReason = "server stopped before the analysis finished"

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusDegraded || s == StatusFailed
}

// Entry is one journal row.
type Entry struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	VideoID         string     `json:"videoId,omitempty"`
	Status          Status     `json:"status"`
	Stage           string     `json:"stage,omitempty"`
	DegradedReasons []string   `json:"degradedReasons,omitempty"`
	ErrorMessage    string     `json:"error,omitempty"`
	FailedStage     string     `json:"failedStage,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// Elapsed returns how long the analysis ran, or has been running.
func (e *Entry) Elapsed(now time.Time) time.Duration {
	if e == nil || e.CreatedAt.IsZero() {
		return 0
	}
	end := now
	if e.FinishedAt != nil {
		end = *e.FinishedAt
	}
	if end.Before(e.CreatedAt) {
		return 0
	}
	return end.Sub(e.CreatedAt)
}
