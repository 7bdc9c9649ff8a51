package repository

import (
	"errors"
	"time"

	"mailstream/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type enrichmentQueueRepository struct {
	db *gorm.DB
}

func NewEnrichmentQueueRepository(db *gorm.DB) EnrichmentQueueRepository {
	return &enrichmentQueueRepository{db: db}
}

func (r *enrichmentQueueRepository) Enqueue(item *domain.EnrichmentQueueItem) (bool, error) {
	var existing domain.EnrichmentQueueItem
	err := r.db.Where("message_id = ?", item.MessageID).First(&existing).Error
	if err == nil {
		if existing.Status == domain.TicketStatusFailed {
			// The message was observed again; give the lookup another chance.
			now := time.Now()
			return true, r.db.Model(&existing).Updates(map[string]interface{}{
				"status":       domain.TicketStatusPending,
				"attempts":     0,
				"error_detail": "",
				"updated_at":   now,
			}).Error
		}
		// Active or completed ticket already exists; enqueue is a no-op.
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.Status = domain.TicketStatusPending
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	if err := r.db.Create(item).Error; err != nil {
		// A concurrent enqueue won the unique index race; same outcome.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *enrichmentQueueRepository) FindPending(limit int) ([]*domain.EnrichmentQueueItem, error) {
	var items []*domain.EnrichmentQueueItem
	err := r.db.Where("status = ?", domain.TicketStatusPending).
		Order("created_at ASC").Limit(limit).Find(&items).Error
	return items, err
}

func (r *enrichmentQueueRepository) MarkProcessing(item *domain.EnrichmentQueueItem) error {
	now := time.Now()
	item.Status = domain.TicketStatusProcessing
	item.Attempts++
	item.LastAttemptAt = &now
	item.UpdatedAt = now
	return r.db.Model(item).Updates(map[string]interface{}{
		"status":          item.Status,
		"attempts":        item.Attempts,
		"last_attempt_at": now,
		"updated_at":      now,
	}).Error
}

func (r *enrichmentQueueRepository) MarkCompleted(item *domain.EnrichmentQueueItem, matchedContactID *string) error {
	now := time.Now()
	item.Status = domain.TicketStatusCompleted
	item.MatchedContactID = matchedContactID
	item.UpdatedAt = now
	return r.db.Model(item).Updates(map[string]interface{}{
		"status":             item.Status,
		"matched_contact_id": matchedContactID,
		"error_detail":       "",
		"updated_at":         now,
	}).Error
}

func (r *enrichmentQueueRepository) MarkFailed(item *domain.EnrichmentQueueItem, detail string) error {
	now := time.Now()
	item.Status = domain.TicketStatusFailed
	item.ErrorDetail = detail
	item.UpdatedAt = now
	return r.db.Model(item).Updates(map[string]interface{}{
		"status":       item.Status,
		"error_detail": detail,
		"updated_at":   now,
	}).Error
}

func (r *enrichmentQueueRepository) ResetToPending(item *domain.EnrichmentQueueItem, detail string) error {
	now := time.Now()
	item.Status = domain.TicketStatusPending
	item.ErrorDetail = detail
	item.UpdatedAt = now
	return r.db.Model(item).Updates(map[string]interface{}{
		"status":       item.Status,
		"error_detail": detail,
		"updated_at":   now,
	}).Error
}

func (r *enrichmentQueueRepository) CountsByStatus() (*domain.QueueStats, error) {
	stats := &domain.QueueStats{}
	type row struct {
		Status domain.TicketStatus
		Count  int64
	}
	var rows []row
	err := r.db.Model(&domain.EnrichmentQueueItem{}).
		Select("status, COUNT(*) as count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		switch r.Status {
		case domain.TicketStatusPending:
			stats.Pending = r.Count
		case domain.TicketStatusProcessing:
			stats.Processing = r.Count
		case domain.TicketStatusCompleted:
			stats.Completed = r.Count
		case domain.TicketStatusFailed:
			stats.Failed = r.Count
		}
	}
	return stats, nil
}

func (r *enrichmentQueueRepository) DeleteFinishedBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("status IN ? AND updated_at < ?",
		[]domain.TicketStatus{domain.TicketStatusCompleted, domain.TicketStatusFailed}, cutoff).
		Delete(&domain.EnrichmentQueueItem{})
	return result.RowsAffected, result.Error
}

func (r *enrichmentQueueRepository) ResetFailed(limit int) (int64, error) {
	var ids []string
	err := r.db.Model(&domain.EnrichmentQueueItem{}).
		Where("status = ?", domain.TicketStatusFailed).
		Order("updated_at ASC").Limit(limit).Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.Model(&domain.EnrichmentQueueItem{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":       domain.TicketStatusPending,
			"attempts":     0,
			"error_detail": "",
			"updated_at":   time.Now(),
		})
	return result.RowsAffected, result.Error
}
