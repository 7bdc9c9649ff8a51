package repository

import (
	"time"

	"mailstream/internal/sync/domain"
)

type EnrichmentQueueRepository interface {
	// Enqueue inserts a pending ticket for the message unless an active or
	// completed one already exists. A previously failed ticket is revived to
	// pending with attempts reset. Returns true when new work was queued.
	Enqueue(item *domain.EnrichmentQueueItem) (bool, error)

	// FindPending returns up to limit pending tickets, oldest first.
	FindPending(limit int) ([]*domain.EnrichmentQueueItem, error)

	// MarkProcessing transitions a ticket to processing and counts the attempt.
	MarkProcessing(item *domain.EnrichmentQueueItem) error

	MarkCompleted(item *domain.EnrichmentQueueItem, matchedContactID *string) error
	MarkFailed(item *domain.EnrichmentQueueItem, detail string) error
	ResetToPending(item *domain.EnrichmentQueueItem, detail string) error

	CountsByStatus() (*domain.QueueStats, error)

	// DeleteFinishedBefore removes completed/failed tickets older than cutoff.
	DeleteFinishedBefore(cutoff time.Time) (int64, error)

	// ResetFailed revives up to limit failed tickets back to pending with a
	// zeroed attempt count. Administrative recovery path.
	ResetFailed(limit int) (int64, error)
}
