package repository

import (
	"time"

	"mailstream/internal/contact/domain"
)

type ContactRepository interface {
	Create(contact *domain.Contact) error
	FindByEmail(accountID, email string) (*domain.Contact, error)
	FindByAccount(accountID string, limit, offset int) ([]*domain.Contact, error)

	// RecordMessage bumps the contact's message counter and last-seen time.
	RecordMessage(contactID string, seenAt time.Time) error
}
