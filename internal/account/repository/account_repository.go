package repository

import (
	"errors"
	"time"

	"mailstream/internal/account/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	return r.db.Create(account).Error
}

func (r *accountRepository) FindByID(id string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByEmail(email string) (*domain.Account, error) {
	var account domain.Account
	err := r.db.Where("email = ?", email).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindAll() ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.db.Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) FindSyncEnabled() ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.db.Where("sync_enabled = ?", true).Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) Update(account *domain.Account) error {
	account.UpdatedAt = time.Now()
	return r.db.Save(account).Error
}

func (r *accountRepository) TouchLastSynced(id string, at time.Time) error {
	return r.db.Model(&domain.Account{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_synced_at": at, "updated_at": time.Now()}).Error
}

func (r *accountRepository) Delete(id string) error {
	return r.db.Delete(&domain.Account{}, "id = ?", id).Error
}
