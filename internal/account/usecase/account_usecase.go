package usecase

import (
	"errors"
	"fmt"
	"strings"

	"mailstream/internal/account/domain"
	"mailstream/internal/account/dto"
	"mailstream/internal/account/repository"
	"mailstream/pkg/config"
	"mailstream/pkg/crypto"
)

var ErrAccountExists = errors.New("account already connected")

// AccountUsecase manages connected mailboxes. IMAP passwords are encrypted
// before they reach the store.
type AccountUsecase interface {
	Connect(req *dto.ConnectAccountRequest) (*domain.Account, error)
	Get(id string) (*domain.Account, error)
	List() ([]*domain.Account, error)
	SetSyncEnabled(id string, enabled bool) (*domain.Account, error)
	Disconnect(id string) error
}

type accountUsecase struct {
	accountRepo repository.AccountRepository
	cfg         *config.Config
}

func NewAccountUsecase(accountRepo repository.AccountRepository, cfg *config.Config) AccountUsecase {
	return &accountUsecase{accountRepo: accountRepo, cfg: cfg}
}

func (u *accountUsecase) Connect(req *dto.ConnectAccountRequest) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := u.accountRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	account := &domain.Account{
		Email:       email,
		Provider:    req.Provider,
		SyncEnabled: true,
	}

	switch req.Provider {
	case domain.ProviderGmail, domain.ProviderOutlook:
		if req.RefreshToken == "" {
			return nil, errors.New("refresh token required for OAuth providers")
		}
		account.AccessToken = req.AccessToken
		account.RefreshToken = req.RefreshToken
	case domain.ProviderIMAP:
		if req.IMAPHost == "" || req.IMAPUsername == "" || req.IMAPPassword == "" {
			return nil, errors.New("imap host, username and password required")
		}
		encrypted, err := crypto.Encrypt(req.IMAPPassword, u.cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt IMAP password: %w", err)
		}
		account.IMAPHost = req.IMAPHost
		account.IMAPPort = req.IMAPPort
		if account.IMAPPort == 0 {
			account.IMAPPort = 993
		}
		account.IMAPUsername = req.IMAPUsername
		account.IMAPPassword = encrypted
		account.IMAPEncryption = req.IMAPEncryption
		if account.IMAPEncryption == "" {
			account.IMAPEncryption = "ssl"
		}
	default:
		return nil, fmt.Errorf("unknown provider %q", req.Provider)
	}

	if err := u.accountRepo.Create(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (u *accountUsecase) Get(id string) (*domain.Account, error) {
	return u.accountRepo.FindByID(id)
}

func (u *accountUsecase) List() ([]*domain.Account, error) {
	return u.accountRepo.FindAll()
}

func (u *accountUsecase) SetSyncEnabled(id string, enabled bool) (*domain.Account, error) {
	account, err := u.accountRepo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}
	account.SyncEnabled = enabled
	if err := u.accountRepo.Update(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (u *accountUsecase) Disconnect(id string) error {
	return u.accountRepo.Delete(id)
}
