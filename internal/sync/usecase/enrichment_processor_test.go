package usecase

import (
	"fmt"
	"testing"
	"time"

	contactdomain "mailstream/internal/contact/domain"
	contactrepo "mailstream/internal/contact/repository"
	"mailstream/internal/sync/domain"
	"mailstream/internal/sync/repository"
	"mailstream/internal/testutil"

	"gorm.io/gorm"
)

type processorFixture struct {
	db        *gorm.DB
	processor *EnrichmentProcessor
	queue     repository.EnrichmentQueueRepository
	messages  repository.MessageRepository
	contacts  contactrepo.ContactRepository
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	db := testutil.NewDB(t)
	queue := repository.NewEnrichmentQueueRepository(db)
	messages := repository.NewMessageRepository(db)
	contacts := contactrepo.NewContactRepository(db)
	return &processorFixture{
		db:        db,
		processor: NewEnrichmentProcessor(queue, messages, contacts, testutil.NewLogger()),
		queue:     queue,
		messages:  messages,
		contacts:  contacts,
	}
}

func (f *processorFixture) storeMessage(t *testing.T, sender string) *domain.StoredMessage {
	t.Helper()
	msg := &domain.StoredMessage{
		AccountID:  "acc-1",
		ProviderID: fmt.Sprintf("p-%d", time.Now().UnixNano()),
		Sender:     sender,
		Subject:    "Invoice",
		ReceivedAt: baseTime,
	}
	if err := f.messages.Create(msg); err != nil {
		t.Fatalf("failed to store message: %v", err)
	}
	return msg
}

func TestEnqueueIsIdempotent(t *testing.T) {
	f := newProcessorFixture(t)
	msg := f.storeMessage(t, "bob@example.com")

	queued, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if !queued {
		t.Fatalf("expected new work queued")
	}

	queued, err = f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject)
	if err != nil {
		t.Fatalf("second enqueue failed: %v", err)
	}
	if queued {
		t.Fatalf("expected no-op for an active ticket")
	}

	stats, err := f.processor.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Pending != 1 {
		t.Fatalf("expected exactly one pending ticket, got %+v", stats)
	}
}

func TestEnqueueRevivesFailedTicket(t *testing.T) {
	f := newProcessorFixture(t)
	msg := f.storeMessage(t, "bob@example.com")

	if _, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	items, err := f.queue.FindPending(1)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one pending ticket, err=%v", err)
	}
	if err := f.queue.MarkFailed(items[0], "lookup outage"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	queued, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject)
	if err != nil {
		t.Fatalf("re-enqueue failed: %v", err)
	}
	if !queued {
		t.Fatalf("expected a failed ticket to be revived")
	}

	stats, err := f.processor.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Pending != 1 || stats.Failed != 0 {
		t.Fatalf("expected the ticket back in pending, got %+v", stats)
	}
}

func TestDrainRespectsBatchSize(t *testing.T) {
	f := newProcessorFixture(t)
	for i := 0; i < 15; i++ {
		msg := f.storeMessage(t, fmt.Sprintf("sender%d@example.com", i))
		if _, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}

	result, err := f.processor.Drain(10)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if result.Picked != 10 {
		t.Fatalf("expected 10 tickets picked, got %d", result.Picked)
	}

	stats, err := f.processor.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Pending != 5 {
		t.Fatalf("expected 5 tickets left pending, got %+v", stats)
	}
}

func TestDrainLinksContactOnMatch(t *testing.T) {
	f := newProcessorFixture(t)
	msg := f.storeMessage(t, "Bob <bob@example.com>")

	contact := &contactdomain.Contact{AccountID: "acc-1", Email: "bob@example.com", Name: "Bob"}
	if err := f.contacts.Create(contact); err != nil {
		t.Fatalf("failed to create contact: %v", err)
	}

	if _, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	result, err := f.processor.Drain(10)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if result.Completed != 1 {
		t.Fatalf("expected one completed ticket, got %+v", result)
	}

	linked, err := f.messages.FindByID(msg.ID)
	if err != nil || linked == nil {
		t.Fatalf("message lookup failed: %v", err)
	}
	if linked.ContactID == nil || *linked.ContactID != contact.ID {
		t.Fatalf("expected the message linked to the contact")
	}

	updated, err := f.contacts.FindByEmail("acc-1", "bob@example.com")
	if err != nil || updated == nil {
		t.Fatalf("contact lookup failed: %v", err)
	}
	if updated.MessageCount != 1 || updated.LastSeenAt == nil {
		t.Fatalf("expected contact counters updated, got %+v", updated)
	}
}

func TestDrainCompletesWithoutMatch(t *testing.T) {
	f := newProcessorFixture(t)
	msg := f.storeMessage(t, "stranger@example.com")

	if _, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	result, err := f.processor.Drain(10)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if result.Completed != 1 || result.Failed != 0 {
		t.Fatalf("no-match must complete the ticket, got %+v", result)
	}

	stats, err := f.processor.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Completed != 1 {
		t.Fatalf("expected one completed ticket, got %+v", stats)
	}
}

func TestDrainFailsTicketAfterAttemptCap(t *testing.T) {
	f := newProcessorFixture(t)
	msg := f.storeMessage(t, "not a parsable sender")

	if _, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	for i := 0; i < domain.MaxTicketAttempts-1; i++ {
		result, err := f.processor.Drain(10)
		if err != nil {
			t.Fatalf("drain %d failed: %v", i, err)
		}
		if result.Requeued != 1 {
			t.Fatalf("expected the ticket requeued on attempt %d, got %+v", i+1, result)
		}
	}

	result, err := f.processor.Drain(10)
	if err != nil {
		t.Fatalf("final drain failed: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected the ticket terminal after %d attempts, got %+v", domain.MaxTicketAttempts, result)
	}

	// A failed ticket is no longer selected.
	result, err = f.processor.Drain(10)
	if err != nil {
		t.Fatalf("post-failure drain failed: %v", err)
	}
	if result.Picked != 0 {
		t.Fatalf("expected nothing to pick, got %+v", result)
	}
}

func TestRetryFailedRevivesTickets(t *testing.T) {
	f := newProcessorFixture(t)
	msg := f.storeMessage(t, "bob@example.com")

	if _, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	items, err := f.queue.FindPending(1)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one pending ticket, err=%v", err)
	}
	if err := f.queue.MarkFailed(items[0], "outage"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	revived, err := f.processor.RetryFailed(10)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if revived != 1 {
		t.Fatalf("expected one revived ticket, got %d", revived)
	}

	stats, err := f.processor.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Pending != 1 || stats.Failed != 0 {
		t.Fatalf("expected the ticket pending again, got %+v", stats)
	}
}

func TestCleanupPrunesOldFinishedTickets(t *testing.T) {
	f := newProcessorFixture(t)
	msg := f.storeMessage(t, "bob@example.com")

	if _, err := f.processor.Enqueue(msg.ID, "acc-1", msg.Sender, msg.Subject); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := f.processor.Drain(10); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	// Age the finished ticket past the retention window.
	old := time.Now().AddDate(0, 0, -10)
	if err := f.db.Model(&domain.EnrichmentQueueItem{}).
		Where("message_id = ?", msg.ID).
		UpdateColumn("updated_at", old).Error; err != nil {
		t.Fatalf("failed to age ticket: %v", err)
	}

	removed, err := f.processor.Cleanup(7)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one ticket pruned, got %d", removed)
	}

	stats, err := f.processor.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Completed != 0 {
		t.Fatalf("expected the finished ticket gone, got %+v", stats)
	}
}
