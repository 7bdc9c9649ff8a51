package repository

import (
	"time"

	"mailstream/internal/account/domain"
)

type AccountRepository interface {
	Create(account *domain.Account) error
	FindByID(id string) (*domain.Account, error)
	FindByEmail(email string) (*domain.Account, error)
	FindAll() ([]*domain.Account, error)
	FindSyncEnabled() ([]*domain.Account, error)
	Update(account *domain.Account) error
	TouchLastSynced(id string, at time.Time) error
	Delete(id string) error
}
