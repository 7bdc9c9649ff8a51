package repository

import (
	"errors"
	"strings"
	"time"

	"mailstream/internal/contact/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(contact *domain.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	contact.Email = strings.ToLower(contact.Email)
	now := time.Now()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	return r.db.Create(contact).Error
}

func (r *contactRepository) FindByEmail(accountID, email string) (*domain.Contact, error) {
	var contact domain.Contact
	err := r.db.Where("account_id = ? AND email = ?", accountID, strings.ToLower(email)).First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) FindByAccount(accountID string, limit, offset int) ([]*domain.Contact, error) {
	var contacts []*domain.Contact
	err := r.db.Where("account_id = ?", accountID).
		Order("message_count DESC").Limit(limit).Offset(offset).Find(&contacts).Error
	return contacts, err
}

func (r *contactRepository) RecordMessage(contactID string, seenAt time.Time) error {
	return r.db.Model(&domain.Contact{}).Where("id = ?", contactID).
		Updates(map[string]interface{}{
			"message_count": gorm.Expr("message_count + 1"),
			"last_seen_at":  seenAt,
			"updated_at":    time.Now(),
		}).Error
}
