package domain

import (
	"encoding/json"
	"time"
)

type RunType string

const (
	RunTypeInitial   RunType = "initial"
	RunTypeManual    RunType = "manual"
	RunTypeAutomatic RunType = "automatic"
	RunTypeRetry     RunType = "retry"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunError is one per-message failure captured during a run. The full list is
// serialized into the run row; a separate FailedSyncItem drives retries.
type RunError struct {
	CandidateID string        `json:"candidate_id"`
	Category    ErrorCategory `json:"category"`
	Message     string        `json:"message"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// SyncRun is the durable metrics record for one orchestrator invocation.
// It is created at run start, flushed periodically while the run progresses
// so a crash still leaves a recent snapshot, and finalized at run end.
type SyncRun struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	AccountID     string     `json:"account_id" gorm:"index;not null"`
	FolderID      string     `json:"folder_id,omitempty"`
	RunType       RunType    `json:"run_type" gorm:"not null"`
	Provider      string     `json:"provider"`
	Status        RunStatus  `json:"status" gorm:"index;not null"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	TotalEstimate int        `json:"total_estimate"`
	Processed     int        `json:"processed"`
	Inserted      int        `json:"inserted"`
	Updated       int        `json:"updated"`
	Skipped       int        `json:"skipped"`
	Failed        int        `json:"failed"`
	Duplicates    int        `json:"duplicates"`

	// Serialized []RunError, written on flush and at completion.
	ErrorLog string `json:"-" gorm:"type:text"`

	// Derived at completion.
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	MemoryBytes     uint64  `json:"memory_bytes"`
	CategorySummary string  `json:"category_summary,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

// Errors decodes the serialized error list.
func (r *SyncRun) Errors() []RunError {
	if r.ErrorLog == "" {
		return nil
	}
	var list []RunError
	if err := json.Unmarshal([]byte(r.ErrorLog), &list); err != nil {
		return nil
	}
	return list
}

// SetErrors serializes the error list onto the row.
func (r *SyncRun) SetErrors(list []RunError) {
	if len(list) == 0 {
		r.ErrorLog = ""
		return
	}
	b, err := json.Marshal(list)
	if err != nil {
		return
	}
	r.ErrorLog = string(b)
}

// HealthSummary is the derived, read-only aggregation over an account's
// recent runs, exposed to dashboards.
type HealthSummary struct {
	AccountID       string  `json:"account_id"`
	RunCount        int     `json:"run_count"`
	SuccessRate     float64 `json:"success_rate"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
	OpenFailedItems int64   `json:"open_failed_items"`
}
