package repository

import (
	"time"

	"mailstream/internal/sync/domain"
)

type MessageRepository interface {
	Create(msg *domain.StoredMessage) error
	Update(msg *domain.StoredMessage) error
	FindByID(id string) (*domain.StoredMessage, error)
	FindByProviderID(accountID, providerID string) (*domain.StoredMessage, error)
	FindByMessageID(accountID, messageID string) (*domain.StoredMessage, error)

	// FindBySenderWithin returns live rows from one sender received inside
	// [from, to], for the fuzzy near-duplicate path.
	FindBySenderWithin(accountID, sender string, from, to time.Time) ([]*domain.StoredMessage, error)

	// FindDuplicatedMessageIDs lists secondary identifiers with more than one
	// live row for the account.
	FindDuplicatedMessageIDs(accountID string) ([]string, error)

	// FindAllByMessageID returns every live row for one secondary identifier,
	// earliest received first.
	FindAllByMessageID(accountID, messageID string) ([]*domain.StoredMessage, error)

	Delete(ids []string) error
	SetContact(messageID, contactID string) error
	CountByAccount(accountID string) (int64, error)
}
