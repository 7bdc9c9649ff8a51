package usecase

import (
	"fmt"
	"strings"
	"time"

	contactrepo "mailstream/internal/contact/repository"
	"mailstream/internal/sync/domain"
	"mailstream/internal/sync/repository"

	"github.com/sirupsen/logrus"
)

// EnrichmentProcessor drains the enrichment queue: for each ticket it looks
// up the contact matching the message sender and links it onto the stored
// message. Work is sequential; a ticket's failure never stops the batch.
type EnrichmentProcessor struct {
	queueRepo   repository.EnrichmentQueueRepository
	messageRepo repository.MessageRepository
	contactRepo contactrepo.ContactRepository
	log         *logrus.Entry
}

func NewEnrichmentProcessor(
	queueRepo repository.EnrichmentQueueRepository,
	messageRepo repository.MessageRepository,
	contactRepo contactrepo.ContactRepository,
	log *logrus.Entry,
) *EnrichmentProcessor {
	return &EnrichmentProcessor{
		queueRepo:   queueRepo,
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		log:         log,
	}
}

// Enqueue files a ticket for the stored message. Idempotent per message.
func (p *EnrichmentProcessor) Enqueue(messageID, accountID, sender, subject string) (bool, error) {
	return p.queueRepo.Enqueue(&domain.EnrichmentQueueItem{
		MessageID: messageID,
		AccountID: accountID,
		Sender:    sender,
		Subject:   subject,
	})
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Picked    int `json:"picked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Requeued  int `json:"requeued"`
}

// Drain processes up to batchSize pending tickets, oldest first.
func (p *EnrichmentProcessor) Drain(batchSize int) (*DrainResult, error) {
	items, err := p.queueRepo.FindPending(batchSize)
	if err != nil {
		return nil, err
	}

	result := &DrainResult{Picked: len(items)}
	for _, item := range items {
		if err := p.queueRepo.MarkProcessing(item); err != nil {
			p.log.WithError(err).Error("Failed to claim enrichment ticket")
			continue
		}

		contactID, err := p.enrich(item)
		if err == nil {
			if err := p.queueRepo.MarkCompleted(item, contactID); err != nil {
				p.log.WithError(err).Error("Failed to complete enrichment ticket")
			}
			result.Completed++
			continue
		}

		p.log.WithFields(logrus.Fields{
			"message_id": item.MessageID,
			"attempts":   item.Attempts,
		}).WithError(err).Warn("Enrichment attempt failed")

		if item.Attempts >= domain.MaxTicketAttempts {
			if err := p.queueRepo.MarkFailed(item, err.Error()); err != nil {
				p.log.WithError(err).Error("Failed to mark enrichment ticket failed")
			}
			result.Failed++
		} else {
			if err := p.queueRepo.ResetToPending(item, err.Error()); err != nil {
				p.log.WithError(err).Error("Failed to requeue enrichment ticket")
			}
			result.Requeued++
		}
	}
	return result, nil
}

// enrich performs the lookup for one ticket. A missing contact is a valid
// outcome, reported as a nil contact ID on a completed ticket.
func (p *EnrichmentProcessor) enrich(item *domain.EnrichmentQueueItem) (*string, error) {
	msg, err := p.messageRepo.FindByID(item.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		// Message was deduplicated away after enqueue; nothing to link.
		return nil, nil
	}

	email := extractEmail(item.Sender)
	if email == "" {
		return nil, fmt.Errorf("no parsable address in sender %q", item.Sender)
	}

	contact, err := p.contactRepo.FindByEmail(item.AccountID, email)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, nil
	}

	if err := p.messageRepo.SetContact(msg.ID, contact.ID); err != nil {
		return nil, err
	}
	if err := p.contactRepo.RecordMessage(contact.ID, msg.ReceivedAt); err != nil {
		return nil, err
	}
	return &contact.ID, nil
}

// Cleanup deletes finished tickets older than the retention window.
func (p *EnrichmentProcessor) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := p.queueRepo.DeleteFinishedBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.log.WithField("removed", removed).Info("Pruned finished enrichment tickets")
	}
	return removed, nil
}

// Stats returns the per-status queue breakdown.
func (p *EnrichmentProcessor) Stats() (*domain.QueueStats, error) {
	return p.queueRepo.CountsByStatus()
}

// RetryFailed revives up to limit failed tickets back to pending.
func (p *EnrichmentProcessor) RetryFailed(limit int) (int64, error) {
	if limit <= 0 {
		limit = 100
	}
	return p.queueRepo.ResetFailed(limit)
}

// extractEmail pulls the bare address out of an RFC 5322 style sender value
// such as `"Jane Doe" <jane@example.com>`.
func extractEmail(sender string) string {
	sender = strings.TrimSpace(sender)
	if start := strings.LastIndex(sender, "<"); start >= 0 {
		if end := strings.Index(sender[start:], ">"); end > 0 {
			return strings.ToLower(strings.TrimSpace(sender[start+1 : start+end]))
		}
	}
	if strings.Contains(sender, "@") && !strings.ContainsAny(sender, " \t") {
		return strings.ToLower(sender)
	}
	return ""
}
