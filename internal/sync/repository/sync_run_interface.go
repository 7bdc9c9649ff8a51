package repository

import "mailstream/internal/sync/domain"

type SyncRunRepository interface {
	Create(run *domain.SyncRun) error
	Update(run *domain.SyncRun) error
	FindByID(id string) (*domain.SyncRun, error)
	FindRecentByAccount(accountID string, limit int) ([]*domain.SyncRun, error)
}
