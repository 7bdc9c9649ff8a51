// Package provider defines the adapter contract for remote mail providers.
// Adapters are pure I/O: they list and fetch messages for a credential and a
// cursor, and carry no deduplication or state logic.
package provider

import (
	"context"
	"errors"

	syncdomain "mailstream/internal/sync/domain"
)

// ErrAuthFailed marks a terminal credential fault. The orchestrator treats it
// as a run-level failure so the caller can prompt reconnection.
var ErrAuthFailed = errors.New("provider authentication failed")

// ErrRateLimited marks provider throttling; eligible for retry with a longer
// backoff than plain network faults.
var ErrRateLimited = errors.New("provider rate limited")

// Credentials carries whatever the adapter family needs: a bearer token for
// the OAuth providers, host settings and a decrypted password for IMAP.
type Credentials struct {
	AccessToken string

	IMAPHost       string
	IMAPPort       int
	IMAPUsername   string
	IMAPPassword   string
	IMAPEncryption string
}

// ListResult is one page of candidates plus the cursor for the next page.
// An empty NextCursor means the listing is exhausted.
type ListResult struct {
	Messages      []*syncdomain.MessageCandidate
	NextCursor    string
	TotalEstimate int
}

type MailProvider interface {
	Name() string
	ListMessages(ctx context.Context, creds Credentials, folderID, cursor string) (*ListResult, error)
}
