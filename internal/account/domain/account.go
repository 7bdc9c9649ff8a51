package domain

import "time"

const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
	ProviderIMAP    = "imap"
)

// Account is one connected mailbox. OAuth providers carry token state; IMAP
// accounts carry host settings and an encrypted password instead.
type Account struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Provider string `json:"provider" gorm:"not null"` // gmail, outlook or imap

	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"token_expiry,omitempty"`

	IMAPHost       string `json:"imap_host,omitempty"`
	IMAPPort       int    `json:"imap_port,omitempty"`
	IMAPUsername   string `json:"imap_username,omitempty"`
	IMAPPassword   string `json:"-"` // encrypted at rest
	IMAPEncryption string `json:"imap_encryption,omitempty"`

	SyncEnabled  bool       `json:"sync_enabled" gorm:"default:true"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// SyncDue reports whether the account should be picked up by the automatic
// sync loop given the configured interval.
func (a *Account) SyncDue(interval time.Duration, now time.Time) bool {
	if !a.SyncEnabled {
		return false
	}
	if a.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*a.LastSyncedAt) >= interval
}
