package domain

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidCandidate marks candidates that fail basic shape checks.
// These are logged under the validation category and never retried.
var ErrInvalidCandidate = errors.New("invalid message candidate")

// MessageCandidate is the transient, in-memory form of one inbound item
// observed during a sync pass. It is never persisted directly; the resolver
// decides how it becomes (or updates) a StoredMessage.
type MessageCandidate struct {
	ProviderID  string    `json:"provider_id"` // provider-native message ID
	MessageID   string    `json:"message_id"`  // stable RFC 5322 Message-ID, provider-independent
	AccountID   string    `json:"account_id"`
	Subject     string    `json:"subject"`
	Sender      string    `json:"sender"`
	ReceivedAt  time.Time `json:"received_at"`
	IsRead      bool      `json:"is_read"`
	IsStarred   bool      `json:"is_starred"`
	IsImportant bool      `json:"is_important"`
}

// Validate performs the shape checks that gate ingestion.
func (c *MessageCandidate) Validate() error {
	if c.ProviderID == "" {
		return errors.New("candidate has no provider ID")
	}
	if c.AccountID == "" {
		return errors.New("candidate has no account ID")
	}
	if c.Sender == "" {
		return errors.New("candidate has no sender address")
	}
	if c.ReceivedAt.IsZero() {
		return errors.New("candidate has no received timestamp")
	}
	return nil
}

// StoredMessage is the persistent record of one ingested email, owned by one
// account. For a given account the MessageID resolves to at most one live row
// after reconciliation; duplicates are a transient condition corrected by the
// resolver and the bulk dedup job.
type StoredMessage struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	AccountID   string         `json:"account_id" gorm:"index:idx_account_message_id;not null"`
	ProviderID  string         `json:"provider_id" gorm:"index;not null"`
	MessageID   string         `json:"message_id" gorm:"index:idx_account_message_id"`
	Subject     string         `json:"subject"`
	Sender      string         `json:"sender" gorm:"index"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"index;not null"`
	IsRead      bool           `json:"is_read"`
	IsStarred   bool           `json:"is_starred"`
	IsImportant bool           `json:"is_important"`
	ContactID   *string        `json:"contact_id,omitempty"` // set by the enrichment processor
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (StoredMessage) TableName() string {
	return "stored_messages"
}

// MergeFlags ORs the candidate's mutable flags into the stored row.
// A flag once set by any path remains set. Returns true if anything changed.
func (m *StoredMessage) MergeFlags(c *MessageCandidate) bool {
	changed := false
	if c.IsRead && !m.IsRead {
		m.IsRead = true
		changed = true
	}
	if c.IsStarred && !m.IsStarred {
		m.IsStarred = true
		changed = true
	}
	if c.IsImportant && !m.IsImportant {
		m.IsImportant = true
		changed = true
	}
	return changed
}
