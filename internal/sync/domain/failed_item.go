package domain

import "time"

// ErrorCategory is the closed classification set for per-message failures.
// The category drives both summary grouping and retry eligibility.
type ErrorCategory string

const (
	CategoryNetwork    ErrorCategory = "network"
	CategoryParsing    ErrorCategory = "parsing"
	CategoryValidation ErrorCategory = "validation"
	CategoryDuplicate  ErrorCategory = "duplicate"
	CategoryRateLimit  ErrorCategory = "rate_limit"
	CategoryUnknown    ErrorCategory = "unknown"
)

// MaxItemRetries bounds automatic retries of a failed candidate. Beyond this
// the record turns terminal and drops out of retry scans.
const MaxItemRetries = 3

// Retryable reports whether items in this category are worth retrying at all.
func (c ErrorCategory) Retryable() bool {
	switch c {
	case CategoryValidation, CategoryDuplicate:
		return false
	}
	return true
}

// RetryDelay is the fixed delay before the next retry attempt. Rate-limit
// failures back off twice as long as everything else.
func (c ErrorCategory) RetryDelay() time.Duration {
	if c == CategoryRateLimit {
		return 10 * time.Minute
	}
	return 5 * time.Minute
}

// FailedSyncItem is the durable record of one candidate that failed
// processing, kept independent of the SyncRun so retries can be scheduled
// long after the run finished.
type FailedSyncItem struct {
	ID          string        `json:"id" gorm:"primaryKey"`
	AccountID   string        `json:"account_id" gorm:"index;not null"`
	FolderID    string        `json:"folder_id,omitempty"`
	CandidateID string        `json:"candidate_id" gorm:"index;not null"` // provider-native ID
	Category    ErrorCategory `json:"category" gorm:"index;not null"`
	Detail      string        `json:"detail" gorm:"type:text"`
	RetryCount  int           `json:"retry_count"`
	NextRetryAt time.Time     `json:"next_retry_at" gorm:"index"`
	Terminal    bool          `json:"terminal" gorm:"index"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (FailedSyncItem) TableName() string {
	return "failed_sync_items"
}
