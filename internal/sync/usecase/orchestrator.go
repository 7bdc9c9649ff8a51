package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	accountdomain "mailstream/internal/account/domain"
	accountrepo "mailstream/internal/account/repository"
	accountusecase "mailstream/internal/account/usecase"
	"mailstream/internal/sync/domain"
	"mailstream/internal/sync/repository"
	"mailstream/pkg/provider"

	"github.com/sirupsen/logrus"
)

var (
	// ErrSyncInProgress means the account already has an active run; at most
	// one run per account may be in flight.
	ErrSyncInProgress = errors.New("sync already in progress for account")

	ErrAccountNotFound = errors.New("account not found")
	ErrRunNotFound     = errors.New("run not found or not active")
)

// retryBatchLimit caps how many due failed items a single retry run targets.
const retryBatchLimit = 200

// Orchestrator drives full sync runs: it pages candidates out of the
// provider adapter, routes each through the resolver, applies the decision
// to the store, feeds the enrichment queue and keeps the run record current
// through the tracker.
type Orchestrator struct {
	accountRepo accountrepo.AccountRepository
	credentials accountusecase.CredentialProvider
	providers   map[string]provider.MailProvider
	resolver    *Resolver
	tracker     *RunTracker
	messageRepo repository.MessageRepository
	queueRepo   repository.EnrichmentQueueRepository
	log         *logrus.Entry

	mu      sync.Mutex
	active  map[string]string             // accountID -> runID
	cancels map[string]context.CancelFunc // runID -> cancel
}

func NewOrchestrator(
	accountRepo accountrepo.AccountRepository,
	credentials accountusecase.CredentialProvider,
	providers map[string]provider.MailProvider,
	resolver *Resolver,
	tracker *RunTracker,
	messageRepo repository.MessageRepository,
	queueRepo repository.EnrichmentQueueRepository,
	log *logrus.Entry,
) *Orchestrator {
	return &Orchestrator{
		accountRepo: accountRepo,
		credentials: credentials,
		providers:   providers,
		resolver:    resolver,
		tracker:     tracker,
		messageRepo: messageRepo,
		queueRepo:   queueRepo,
		log:         log,
		active:      make(map[string]string),
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Cancel requests cooperative cancellation of an active run. The run stops
// at the next batch boundary; already-applied writes are kept.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	cancel, ok := o.cancels[runID]
	o.mu.Unlock()
	if !ok {
		return ErrRunNotFound
	}
	cancel()
	return nil
}

// ActiveRunID returns the ID of the account's in-flight run, if any.
func (o *Orchestrator) ActiveRunID(accountID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	runID, ok := o.active[accountID]
	return runID, ok
}

// preparedRun holds everything a registered run needs to execute.
type preparedRun struct {
	account  *accountdomain.Account
	adapter  provider.MailProvider
	handle   *RunHandle
	runType  domain.RunType
	folderID string
	ctx      context.Context
	cancel   context.CancelFunc
}

// prepare validates the request, creates the durable run row and claims the
// account's single run slot. The returned run must be finished via finish.
func (o *Orchestrator) prepare(ctx context.Context, accountID string, runType domain.RunType, folderID string) (*preparedRun, error) {
	account, err := o.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	adapter, ok := o.providers[account.Provider]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for provider %q", account.Provider)
	}

	handle, err := o.tracker.StartRun(accountID, runType, adapter.Name(), folderID, 0)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := o.register(accountID, handle.ID(), cancel); err != nil {
		cancel()
		if finishErr := o.tracker.CompleteRun(handle, domain.RunStatusFailed); finishErr != nil {
			o.log.WithError(finishErr).Error("Failed to finalize rejected run")
		}
		return nil, err
	}

	return &preparedRun{
		account:  account,
		adapter:  adapter,
		handle:   handle,
		runType:  runType,
		folderID: folderID,
		ctx:      runCtx,
		cancel:   cancel,
	}, nil
}

// finish drives a prepared run to completion and finalizes its record.
func (o *Orchestrator) finish(r *preparedRun) (*domain.SyncRun, error) {
	defer r.cancel()
	defer o.release(r.account.ID, r.handle.ID())

	status := o.execute(r.ctx, r.account, r.adapter, r.handle, r.runType, r.folderID)

	if err := o.tracker.CompleteRun(r.handle, status); err != nil {
		return nil, err
	}
	if status == domain.RunStatusCompleted {
		if err := o.accountRepo.TouchLastSynced(r.account.ID, time.Now()); err != nil {
			o.log.WithError(err).Warn("Failed to record last-synced time")
		}
	}

	run := r.handle.Snapshot()
	return &run, nil
}

// Run executes one sync run for the account and returns the finalized run
// record. Blocks until the run reaches a terminal status.
func (o *Orchestrator) Run(ctx context.Context, accountID string, runType domain.RunType, folderID string) (*domain.SyncRun, error) {
	prepared, err := o.prepare(ctx, accountID, runType, folderID)
	if err != nil {
		return nil, err
	}
	return o.finish(prepared)
}

// StartAsync begins a run in the background and returns its ID immediately.
// The run detaches from the caller's context; cancellation goes through
// Cancel.
func (o *Orchestrator) StartAsync(accountID string, runType domain.RunType, folderID string) (string, error) {
	prepared, err := o.prepare(context.Background(), accountID, runType, folderID)
	if err != nil {
		return "", err
	}
	go func() {
		if _, err := o.finish(prepared); err != nil {
			o.log.WithFields(logrus.Fields{
				"account_id": accountID,
			}).WithError(err).Error("Background sync run failed to finalize")
		}
	}()
	return prepared.handle.ID(), nil
}

func (o *Orchestrator) register(accountID, runID string, cancel context.CancelFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[accountID]; busy {
		return ErrSyncInProgress
	}
	o.active[accountID] = runID
	o.cancels[runID] = cancel
	return nil
}

func (o *Orchestrator) release(accountID, runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, accountID)
	delete(o.cancels, runID)
}

// execute runs the batch loop and returns the terminal status. Partial
// counters accumulated before an abort are kept on the run record.
func (o *Orchestrator) execute(ctx context.Context, account *accountdomain.Account, adapter provider.MailProvider, handle *RunHandle, runType domain.RunType, folderID string) domain.RunStatus {
	creds, err := o.credentials.Credentials(ctx, account)
	if err != nil {
		o.tracker.LogError(handle, "", Classify(err), err)
		o.log.WithFields(logrus.Fields{
			"account_id": account.ID,
		}).WithError(err).Error("Credential acquisition failed, aborting run")
		return domain.RunStatusFailed
	}

	// A retry run only re-processes candidates with a due failure record.
	var retryTargets map[string]bool
	if runType == domain.RunTypeRetry {
		retryTargets, err = o.loadRetryTargets(account.ID)
		if err != nil {
			o.tracker.LogError(handle, "", Classify(err), err)
			return domain.RunStatusFailed
		}
		if len(retryTargets) == 0 {
			return domain.RunStatusCompleted
		}
	}

	cursor := ""
	for {
		if ctx.Err() != nil {
			return domain.RunStatusCancelled
		}

		page, err := adapter.ListMessages(ctx, creds, folderID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return domain.RunStatusCancelled
			}
			o.tracker.LogError(handle, "", Classify(err), err)
			o.log.WithFields(logrus.Fields{
				"account_id": account.ID,
				"provider":   adapter.Name(),
			}).WithError(err).Error("Listing failed, aborting run")
			return domain.RunStatusFailed
		}

		if page.TotalEstimate > 0 {
			handle.mu.Lock()
			handle.run.TotalEstimate = page.TotalEstimate
			handle.mu.Unlock()
		}

		for _, candidate := range page.Messages {
			// Adapters don't know which local account they serve.
			candidate.AccountID = account.ID
			o.processCandidate(handle, candidate, retryTargets)
		}

		if page.NextCursor == "" {
			return domain.RunStatusCompleted
		}
		cursor = page.NextCursor
	}
}

func (o *Orchestrator) loadRetryTargets(accountID string) (map[string]bool, error) {
	items, err := o.tracker.DueFailedItems(accountID, retryBatchLimit)
	if err != nil {
		return nil, err
	}
	targets := make(map[string]bool, len(items))
	for _, item := range items {
		targets[item.CandidateID] = true
	}
	return targets, nil
}

// processCandidate takes one candidate through validation, resolution and
// application. Failures are recorded per message and never abort the run.
func (o *Orchestrator) processCandidate(handle *RunHandle, candidate *domain.MessageCandidate, retryTargets map[string]bool) {
	started := time.Now()
	delta := CounterDelta{Processed: 1}

	if retryTargets != nil && !retryTargets[candidate.ProviderID] {
		delta.Skipped = 1
		if err := o.tracker.Update(handle, delta); err != nil {
			o.log.WithError(err).Error("Failed to update run counters")
		}
		return
	}

	if err := candidate.Validate(); err != nil {
		wrapped := fmt.Errorf("%w: %v", domain.ErrInvalidCandidate, err)
		o.tracker.LogError(handle, candidate.ProviderID, domain.CategoryValidation, wrapped)
		delta.Latency = time.Since(started)
		if err := o.tracker.Update(handle, delta); err != nil {
			o.log.WithError(err).Error("Failed to update run counters")
		}
		return
	}

	resolution, err := o.resolver.Resolve(candidate)
	if err == nil {
		err = o.apply(resolution, candidate, &delta)
	}
	if err != nil {
		o.tracker.LogError(handle, candidate.ProviderID, Classify(err), err)
	} else if retryTargets != nil {
		if resolveErr := o.tracker.ResolveFailedItem(candidate.AccountID, candidate.ProviderID); resolveErr != nil {
			o.log.WithError(resolveErr).Warn("Failed to clear resolved failure record")
		}
	}

	delta.Latency = time.Since(started)
	if err := o.tracker.Update(handle, delta); err != nil {
		o.log.WithError(err).Error("Failed to update run counters")
	}
}

// apply mutates the store according to the resolver's decision and adjusts
// the counter delta.
func (o *Orchestrator) apply(resolution *Resolution, candidate *domain.MessageCandidate, delta *CounterDelta) error {
	switch resolution.Decision {
	case DecisionInsertNew, DecisionInsertAsDistinct:
		stored := &domain.StoredMessage{
			AccountID:   candidate.AccountID,
			ProviderID:  candidate.ProviderID,
			MessageID:   candidate.MessageID,
			Subject:     candidate.Subject,
			Sender:      candidate.Sender,
			ReceivedAt:  candidate.ReceivedAt,
			IsRead:      candidate.IsRead,
			IsStarred:   candidate.IsStarred,
			IsImportant: candidate.IsImportant,
		}
		if err := o.messageRepo.Create(stored); err != nil {
			return err
		}
		delta.Inserted = 1
		return o.enqueueEnrichment(stored)

	case DecisionKeepExisting:
		delta.Duplicates = 1
		return nil

	case DecisionReplaceWithIncoming:
		existing := resolution.Existing
		existing.ProviderID = candidate.ProviderID
		existing.Subject = candidate.Subject
		existing.Sender = candidate.Sender
		existing.ReceivedAt = candidate.ReceivedAt
		existing.MergeFlags(candidate)
		if existing.MessageID == "" {
			existing.MessageID = candidate.MessageID
		}
		if err := o.messageRepo.Update(existing); err != nil {
			return err
		}
		delta.Updated = 1
		return o.enqueueEnrichment(existing)

	case DecisionMergeFlags:
		existing := resolution.Existing
		if !existing.MergeFlags(candidate) {
			delta.Duplicates = 1
			return nil
		}
		if err := o.messageRepo.Update(existing); err != nil {
			return err
		}
		delta.Updated = 1
		return o.enqueueEnrichment(existing)
	}

	return fmt.Errorf("unhandled resolver decision %q", resolution.Decision)
}

func (o *Orchestrator) enqueueEnrichment(stored *domain.StoredMessage) error {
	if stored.ContactID != nil {
		return nil
	}
	_, err := o.queueRepo.Enqueue(&domain.EnrichmentQueueItem{
		MessageID: stored.ID,
		AccountID: stored.AccountID,
		Sender:    stored.Sender,
		Subject:   stored.Subject,
	})
	return err
}

// SyncDueAccounts runs an automatic sync for every enabled account whose
// interval has elapsed. Accounts are processed sequentially; one account's
// failure does not block the rest.
func (o *Orchestrator) SyncDueAccounts(ctx context.Context, interval time.Duration) {
	accounts, err := o.accountRepo.FindSyncEnabled()
	if err != nil {
		o.log.WithError(err).Error("Failed to list sync-enabled accounts")
		return
	}

	now := time.Now()
	for _, account := range accounts {
		if !account.SyncDue(interval, now) {
			continue
		}
		if _, err := o.Run(ctx, account.ID, domain.RunTypeAutomatic, ""); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				continue
			}
			o.log.WithFields(logrus.Fields{
				"account_id": account.ID,
			}).WithError(err).Error("Automatic sync failed")
		}
	}
}
