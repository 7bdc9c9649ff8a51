package repository

import (
	"time"

	"mailstream/internal/sync/domain"
)

type FailedItemRepository interface {
	Create(item *domain.FailedSyncItem) error
	Update(item *domain.FailedSyncItem) error
	FindByCandidate(accountID, candidateID string) (*domain.FailedSyncItem, error)

	// FindDue returns non-terminal items whose next retry time has passed,
	// oldest first.
	FindDue(accountID string, now time.Time, limit int) ([]*domain.FailedSyncItem, error)

	CountOpen(accountID string) (int64, error)
	Delete(id string) error
}
