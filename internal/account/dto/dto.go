package dto

import "mailstream/internal/account/domain"

type ConnectAccountRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Provider string `json:"provider" binding:"required"`

	// OAuth providers.
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// IMAP accounts.
	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"imap_password"`
	IMAPEncryption string `json:"imap_encryption"`
}

type UpdateSyncRequest struct {
	SyncEnabled *bool `json:"sync_enabled" binding:"required"`
}

type AccountsResponse struct {
	Accounts []*domain.Account `json:"accounts"`
}
