package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailstream/internal/account/domain"
	"mailstream/internal/account/repository"
	"mailstream/pkg/config"
	"mailstream/pkg/crypto"
	"mailstream/pkg/provider"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// ErrCredentialExpired means no valid credential can be produced without the
// user reconnecting the account. Terminal for a sync run.
var ErrCredentialExpired = errors.New("credential expired, account reconnection required")

// CredentialProvider hands the orchestrator whatever the provider adapter
// needs: a fresh bearer token for OAuth accounts, decrypted IMAP settings
// otherwise. Token refreshes are persisted as a side effect.
type CredentialProvider interface {
	Credentials(ctx context.Context, account *domain.Account) (provider.Credentials, error)
}

type credentialProvider struct {
	accountRepo repository.AccountRepository
	cfg         *config.Config
}

func NewCredentialProvider(accountRepo repository.AccountRepository, cfg *config.Config) CredentialProvider {
	return &credentialProvider{accountRepo: accountRepo, cfg: cfg}
}

func (p *credentialProvider) Credentials(ctx context.Context, account *domain.Account) (provider.Credentials, error) {
	switch account.Provider {
	case domain.ProviderIMAP:
		return p.imapCredentials(account)
	case domain.ProviderGmail, domain.ProviderOutlook:
		return p.oauthCredentials(ctx, account)
	default:
		return provider.Credentials{}, fmt.Errorf("unknown provider %q", account.Provider)
	}
}

func (p *credentialProvider) imapCredentials(account *domain.Account) (provider.Credentials, error) {
	password, err := crypto.Decrypt(account.IMAPPassword, p.cfg.EncryptionKey)
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("%w: failed to decrypt IMAP password: %v", ErrCredentialExpired, err)
	}
	return provider.Credentials{
		IMAPHost:       account.IMAPHost,
		IMAPPort:       account.IMAPPort,
		IMAPUsername:   account.IMAPUsername,
		IMAPPassword:   password,
		IMAPEncryption: account.IMAPEncryption,
	}, nil
}

func (p *credentialProvider) oauthCredentials(ctx context.Context, account *domain.Account) (provider.Credentials, error) {
	// Reuse the stored token while it still has a safety margin left.
	if account.AccessToken != "" && time.Until(account.TokenExpiry) > time.Minute {
		return provider.Credentials{AccessToken: account.AccessToken}, nil
	}

	if account.RefreshToken == "" {
		return provider.Credentials{}, ErrCredentialExpired
	}

	conf, err := p.oauthConfig(account.Provider)
	if err != nil {
		return provider.Credentials{}, err
	}

	source := conf.TokenSource(ctx, &oauth2.Token{
		RefreshToken: account.RefreshToken,
	})
	token, err := source.Token()
	if err != nil {
		return provider.Credentials{}, fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	}

	account.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}
	account.TokenExpiry = token.Expiry
	if err := p.accountRepo.Update(account); err != nil {
		return provider.Credentials{}, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	return provider.Credentials{AccessToken: token.AccessToken}, nil
}

func (p *credentialProvider) oauthConfig(providerName string) (*oauth2.Config, error) {
	switch providerName {
	case domain.ProviderGmail:
		return &oauth2.Config{
			ClientID:     p.cfg.GoogleClientID,
			ClientSecret: p.cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
		}, nil
	case domain.ProviderOutlook:
		return &oauth2.Config{
			ClientID:     p.cfg.MSClientID,
			ClientSecret: p.cfg.MSClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(p.cfg.MSTenant),
		}, nil
	}
	return nil, fmt.Errorf("no OAuth configuration for provider %q", providerName)
}
