package repository

import (
	"errors"
	"time"

	"mailstream/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type failedItemRepository struct {
	db *gorm.DB
}

func NewFailedItemRepository(db *gorm.DB) FailedItemRepository {
	return &failedItemRepository{db: db}
}

func (r *failedItemRepository) Create(item *domain.FailedSyncItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	return r.db.Create(item).Error
}

func (r *failedItemRepository) Update(item *domain.FailedSyncItem) error {
	item.UpdatedAt = time.Now()
	return r.db.Save(item).Error
}

func (r *failedItemRepository) FindByCandidate(accountID, candidateID string) (*domain.FailedSyncItem, error) {
	var item domain.FailedSyncItem
	err := r.db.Where("account_id = ? AND candidate_id = ?", accountID, candidateID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *failedItemRepository) FindDue(accountID string, now time.Time, limit int) ([]*domain.FailedSyncItem, error) {
	var items []*domain.FailedSyncItem
	err := r.db.Where("account_id = ? AND terminal = ? AND next_retry_at <= ?", accountID, false, now).
		Order("next_retry_at ASC").Limit(limit).Find(&items).Error
	return items, err
}

func (r *failedItemRepository) CountOpen(accountID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.FailedSyncItem{}).
		Where("account_id = ? AND terminal = ?", accountID, false).Count(&count).Error
	return count, err
}

func (r *failedItemRepository) Delete(id string) error {
	return r.db.Delete(&domain.FailedSyncItem{}, "id = ?", id).Error
}
