package domain

import "time"

// Contact is a relationship record owned by one account. The enrichment
// processor matches stored messages to contacts by sender address and keeps
// the counters current.
type Contact struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	AccountID    string     `json:"account_id" gorm:"index:idx_contact_account_email;not null"`
	Email        string     `json:"email" gorm:"index:idx_contact_account_email;not null"`
	Name         string     `json:"name"`
	MessageCount int        `json:"message_count"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Contact) TableName() string {
	return "contacts"
}
