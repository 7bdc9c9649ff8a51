package domain

import "time"

type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusProcessing TicketStatus = "processing"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusFailed     TicketStatus = "failed"
)

// MaxTicketAttempts bounds how often a ticket is retried before it is marked
// failed. Retry happens implicitly through re-selection on a later drain pass.
const MaxTicketAttempts = 3

// EnrichmentQueueItem is one persisted unit of deferred work decoupling
// ingest from the slower sender-to-contact lookup. The unique index on
// MessageID closes the check-then-insert race between concurrent enqueues
// and enforces at most one ticket per target message.
type EnrichmentQueueItem struct {
	ID               string       `json:"id" gorm:"primaryKey"`
	MessageID        string       `json:"message_id" gorm:"uniqueIndex;not null"`
	AccountID        string       `json:"account_id" gorm:"index;not null"`
	Sender           string       `json:"sender"`
	Subject          string       `json:"subject"`
	Status           TicketStatus `json:"status" gorm:"index;not null"`
	Attempts         int          `json:"attempts"`
	LastAttemptAt    *time.Time   `json:"last_attempt_at,omitempty"`
	ErrorDetail      string       `json:"error_detail,omitempty" gorm:"type:text"`
	MatchedContactID *string      `json:"matched_contact_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (EnrichmentQueueItem) TableName() string {
	return "enrichment_queue"
}

// QueueStats is the per-status breakdown returned for observability.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
