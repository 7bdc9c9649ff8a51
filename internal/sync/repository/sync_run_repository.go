package repository

import (
	"errors"
	"time"

	"mailstream/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(run *domain.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	return r.db.Create(run).Error
}

func (r *syncRunRepository) Update(run *domain.SyncRun) error {
	run.UpdatedAt = time.Now()
	return r.db.Save(run).Error
}

func (r *syncRunRepository) FindByID(id string) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *syncRunRepository) FindRecentByAccount(accountID string, limit int) ([]*domain.SyncRun, error) {
	var runs []*domain.SyncRun
	err := r.db.Where("account_id = ?", accountID).
		Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
