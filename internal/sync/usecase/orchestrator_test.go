package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	accountdomain "mailstream/internal/account/domain"
	accountrepo "mailstream/internal/account/repository"
	"mailstream/internal/sync/domain"
	"mailstream/internal/sync/repository"
	"mailstream/internal/testutil"
	"mailstream/pkg/provider"
)

type fakeCredentials struct {
	err error
}

func (f *fakeCredentials) Credentials(ctx context.Context, account *accountdomain.Account) (provider.Credentials, error) {
	if f.err != nil {
		return provider.Credentials{}, f.err
	}
	return provider.Credentials{AccessToken: "token"}, nil
}

type fakeAdapter struct {
	pages     [][]*domain.MessageCandidate
	listErr   error
	afterPage func(pageIdx int)
}

func (f *fakeAdapter) Name() string { return "test" }

func (f *fakeAdapter) ListMessages(ctx context.Context, creds provider.Credentials, folderID, cursor string) (*provider.ListResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	idx := 0
	if cursor != "" {
		idx, _ = strconv.Atoi(cursor)
	}
	if idx >= len(f.pages) {
		return &provider.ListResult{}, nil
	}

	next := ""
	if idx+1 < len(f.pages) {
		next = strconv.Itoa(idx + 1)
	}
	if f.afterPage != nil {
		f.afterPage(idx)
	}
	return &provider.ListResult{
		Messages:      f.pages[idx],
		NextCursor:    next,
		TotalEstimate: totalCandidates(f.pages),
	}, nil
}

func totalCandidates(pages [][]*domain.MessageCandidate) int {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	return n
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	adapter      *fakeAdapter
	credentials  *fakeCredentials
	accounts     accountrepo.AccountRepository
	messages     repository.MessageRepository
	queue        repository.EnrichmentQueueRepository
	accountID    string
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	db := testutil.NewDB(t)

	accounts := accountrepo.NewAccountRepository(db)
	messages := repository.NewMessageRepository(db)
	runs := repository.NewSyncRunRepository(db)
	failed := repository.NewFailedItemRepository(db)
	queue := repository.NewEnrichmentQueueRepository(db)

	account := &accountdomain.Account{
		Email:       "user@example.com",
		Provider:    "test",
		SyncEnabled: true,
	}
	if err := accounts.Create(account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	adapter := &fakeAdapter{}
	credentials := &fakeCredentials{}
	resolver := NewResolver(messages, testutil.NewLogger())
	tracker := NewRunTracker(runs, failed, testutil.NewLogger())
	orchestrator := NewOrchestrator(
		accounts, credentials,
		map[string]provider.MailProvider{"test": adapter},
		resolver, tracker, messages, queue, testutil.NewLogger(),
	)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		adapter:      adapter,
		credentials:  credentials,
		accounts:     accounts,
		messages:     messages,
		queue:        queue,
		accountID:    account.ID,
	}
}

func (f *orchestratorFixture) candidate(providerID, messageID string, receivedAt time.Time) *domain.MessageCandidate {
	return &domain.MessageCandidate{
		ProviderID: providerID,
		MessageID:  messageID,
		AccountID:  f.accountID,
		Subject:    "Weekly digest",
		Sender:     "news@example.com",
		ReceivedAt: receivedAt,
	}
}

func TestRunIngestsAcrossPages(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.adapter.pages = [][]*domain.MessageCandidate{
		{
			f.candidate("p-1", "<m1@example.com>", baseTime),
			f.candidate("p-2", "<m2@example.com>", baseTime.Add(time.Minute)),
		},
		{
			f.candidate("p-3", "<m3@example.com>", baseTime.Add(2*time.Minute)),
		},
	}

	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if run.Processed != 3 || run.Inserted != 3 || run.Failed != 0 {
		t.Fatalf("unexpected counters: %+v", run)
	}
	if run.TotalEstimate != 3 {
		t.Fatalf("expected total estimate 3, got %d", run.TotalEstimate)
	}

	count, err := f.messages.CountByAccount(f.accountID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 stored messages, got %d", count)
	}

	account, err := f.accounts.FindByID(f.accountID)
	if err != nil || account == nil {
		t.Fatalf("account lookup failed: %v", err)
	}
	if account.LastSyncedAt == nil {
		t.Fatalf("expected last-synced time recorded")
	}
}

func TestRunIsIdempotentOnRedelivery(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.adapter.pages = [][]*domain.MessageCandidate{
		{
			f.candidate("p-1", "<m1@example.com>", baseTime),
			f.candidate("p-2", "<m2@example.com>", baseTime.Add(time.Minute)),
		},
	}

	if _, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, ""); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if run.Inserted != 0 || run.Duplicates != 2 {
		t.Fatalf("expected pure duplicates on redelivery, got %+v", run)
	}

	count, err := f.messages.CountByAccount(f.accountID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected message count unchanged, got %d", count)
	}
}

func TestRunReplacesWithEarlierObservation(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.adapter.pages = [][]*domain.MessageCandidate{
		{f.candidate("p-1", "<m1@example.com>", baseTime)},
	}
	if _, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, ""); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The same logical message observed through another path, received
	// five minutes earlier.
	f.adapter.pages = [][]*domain.MessageCandidate{
		{f.candidate("p-2", "<m1@example.com>", baseTime.Add(-5*time.Minute))},
	}
	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if run.Updated != 1 || run.Inserted != 0 {
		t.Fatalf("expected a replace, got %+v", run)
	}

	stored, err := f.messages.FindByMessageID(f.accountID, "<m1@example.com>")
	if err != nil || stored == nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.ProviderID != "p-2" {
		t.Fatalf("expected the earlier observation canonical, got provider %s", stored.ProviderID)
	}
	if !stored.ReceivedAt.Equal(baseTime.Add(-5 * time.Minute)) {
		t.Fatalf("expected the earliest received timestamp, got %s", stored.ReceivedAt)
	}

	count, err := f.messages.CountByAccount(f.accountID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single live row, got %d", count)
	}
}

func TestRunEnqueuesEnrichmentOnInsert(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.adapter.pages = [][]*domain.MessageCandidate{
		{f.candidate("p-1", "<m1@example.com>", baseTime)},
	}

	if _, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, ""); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	stats, err := f.queue.CountsByStatus()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Pending != 1 {
		t.Fatalf("expected one pending enrichment ticket, got %+v", stats)
	}
}

func TestRunFailsOnCredentialError(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.credentials.err = errors.New("refresh rejected")

	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if err != nil {
		t.Fatalf("run returned unexpected error: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
}

func TestRunFailsOnAuthErrorKeepingPartialProgress(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.adapter.pages = [][]*domain.MessageCandidate{
		{f.candidate("p-1", "<m1@example.com>", baseTime)},
		{f.candidate("p-2", "<m2@example.com>", baseTime.Add(time.Minute))},
	}

	// First page succeeds with a next cursor; the second list call errors.
	listCount := 0
	f.orchestrator.providers["test"] = &countingAdapter{
		inner:    f.adapter,
		failFrom: 2,
		err:      provider.ErrAuthFailed,
		calls:    &listCount,
	}

	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if err != nil {
		t.Fatalf("run returned unexpected error: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed run, got %s", run.Status)
	}
	if run.Inserted != 1 {
		t.Fatalf("expected partial progress preserved, got %+v", run)
	}
}

type countingAdapter struct {
	inner    provider.MailProvider
	failFrom int
	err      error
	calls    *int
}

func (c *countingAdapter) Name() string { return c.inner.Name() }

func (c *countingAdapter) ListMessages(ctx context.Context, creds provider.Credentials, folderID, cursor string) (*provider.ListResult, error) {
	*c.calls++
	if *c.calls >= c.failFrom {
		return nil, c.err
	}
	return c.inner.ListMessages(ctx, creds, folderID, cursor)
}

func TestRunRecordsValidationFailures(t *testing.T) {
	f := newOrchestratorFixture(t)
	bad := f.candidate("p-bad", "", baseTime)
	bad.Sender = ""
	f.adapter.pages = [][]*domain.MessageCandidate{
		{bad, f.candidate("p-ok", "<ok@example.com>", baseTime)},
	}

	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("per-message failures must not abort the run, got %s", run.Status)
	}
	if run.Failed != 1 || run.Inserted != 1 {
		t.Fatalf("unexpected counters: %+v", run)
	}

	errs := run.Errors()
	if len(errs) != 1 || errs[0].Category != domain.CategoryValidation {
		t.Fatalf("expected one validation error, got %+v", errs)
	}
}

func TestRunCancellationBetweenBatches(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.adapter.pages = [][]*domain.MessageCandidate{
		{f.candidate("p-1", "<m1@example.com>", baseTime)},
		{f.candidate("p-2", "<m2@example.com>", baseTime.Add(time.Minute))},
	}
	f.adapter.afterPage = func(pageIdx int) {
		if pageIdx != 0 {
			return
		}
		runID, ok := f.orchestrator.ActiveRunID(f.accountID)
		if !ok {
			t.Errorf("expected an active run during execution")
			return
		}
		if err := f.orchestrator.Cancel(runID); err != nil {
			t.Errorf("cancel failed: %v", err)
		}
	}

	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Status != domain.RunStatusCancelled {
		t.Fatalf("expected cancelled run, got %s", run.Status)
	}
	// The in-flight batch finished before the cancellation took effect.
	if run.Inserted != 1 {
		t.Fatalf("expected the first batch preserved, got %+v", run)
	}
}

func TestConcurrentRunRejected(t *testing.T) {
	f := newOrchestratorFixture(t)

	started := make(chan struct{})
	release := make(chan struct{})
	f.adapter.pages = [][]*domain.MessageCandidate{
		{f.candidate("p-1", "<m1@example.com>", baseTime)},
	}
	f.adapter.afterPage = func(pageIdx int) {
		close(started)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
		done <- err
	}()

	<-started
	_, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeManual, "")
	if !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
}

func TestRetryRunClearsResolvedFailures(t *testing.T) {
	f := newOrchestratorFixture(t)

	// Seed a failure record for p-1 through an earlier failed run.
	tracker := f.orchestrator.tracker
	handle, err := tracker.StartRun(f.accountID, domain.RunTypeManual, "test", "", 0)
	if err != nil {
		t.Fatalf("seed run failed: %v", err)
	}
	tracker.LogError(handle, "p-1", domain.CategoryNetwork, errors.New("timeout"))
	if err := tracker.CompleteRun(handle, domain.RunStatusFailed); err != nil {
		t.Fatalf("seed complete failed: %v", err)
	}

	// Make the item due now.
	item, err := f.orchestrator.tracker.failedRepo.FindByCandidate(f.accountID, "p-1")
	if err != nil || item == nil {
		t.Fatalf("expected seeded failure record, err=%v", err)
	}
	item.NextRetryAt = time.Now().Add(-time.Minute)
	if err := f.orchestrator.tracker.failedRepo.Update(item); err != nil {
		t.Fatalf("failed to reschedule item: %v", err)
	}

	f.adapter.pages = [][]*domain.MessageCandidate{
		{
			f.candidate("p-1", "<m1@example.com>", baseTime),
			f.candidate("p-2", "<m2@example.com>", baseTime.Add(time.Minute)),
		},
	}

	run, err := f.orchestrator.Run(context.Background(), f.accountID, domain.RunTypeRetry, "")
	if err != nil {
		t.Fatalf("retry run failed: %v", err)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed retry run, got %s", run.Status)
	}
	// Only the due candidate is processed; the other is skipped.
	if run.Inserted != 1 || run.Skipped != 1 {
		t.Fatalf("unexpected retry counters: %+v", run)
	}

	item, err = f.orchestrator.tracker.failedRepo.FindByCandidate(f.accountID, "p-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected the failure record cleared after a clean retry")
	}
}
