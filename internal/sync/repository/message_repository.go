package repository

import (
	"errors"
	"time"

	"mailstream/internal/sync/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(msg *domain.StoredMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	return r.db.Create(msg).Error
}

func (r *messageRepository) Update(msg *domain.StoredMessage) error {
	msg.UpdatedAt = time.Now()
	return r.db.Save(msg).Error
}

func (r *messageRepository) FindByID(id string) (*domain.StoredMessage, error) {
	var msg domain.StoredMessage
	err := r.db.Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindByProviderID(accountID, providerID string) (*domain.StoredMessage, error) {
	var msg domain.StoredMessage
	err := r.db.Where("account_id = ? AND provider_id = ?", accountID, providerID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindByMessageID(accountID, messageID string) (*domain.StoredMessage, error) {
	if messageID == "" {
		return nil, nil
	}
	var msg domain.StoredMessage
	err := r.db.Where("account_id = ? AND message_id = ?", accountID, messageID).
		Order("received_at ASC").First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindBySenderWithin(accountID, sender string, from, to time.Time) ([]*domain.StoredMessage, error) {
	var msgs []*domain.StoredMessage
	err := r.db.Where("account_id = ? AND sender = ? AND received_at BETWEEN ? AND ?",
		accountID, sender, from, to).
		Order("received_at ASC").Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) FindDuplicatedMessageIDs(accountID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&domain.StoredMessage{}).
		Where("account_id = ? AND message_id <> ''", accountID).
		Group("message_id").
		Having("COUNT(*) > 1").
		Pluck("message_id", &ids).Error
	return ids, err
}

func (r *messageRepository) FindAllByMessageID(accountID, messageID string) ([]*domain.StoredMessage, error) {
	var msgs []*domain.StoredMessage
	err := r.db.Where("account_id = ? AND message_id = ?", accountID, messageID).
		Order("received_at ASC").Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Delete(&domain.StoredMessage{}, "id IN ?", ids).Error
}

func (r *messageRepository) SetContact(messageID, contactID string) error {
	return r.db.Model(&domain.StoredMessage{}).Where("id = ?", messageID).
		Updates(map[string]interface{}{"contact_id": contactID, "updated_at": time.Now()}).Error
}

func (r *messageRepository) CountByAccount(accountID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.StoredMessage{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}
