package usecase

import (
	"encoding/json"
	"runtime"
	"sync"
	"time"

	"mailstream/internal/sync/domain"
	"mailstream/internal/sync/repository"

	"github.com/sirupsen/logrus"
)

// flushEvery is how many processed messages accumulate between durable
// snapshots of a running run's counters.
const flushEvery = 50

// RunHandle is the caller-held reference to one in-flight run. All counter
// updates go through the handle; there is no global lookup of active runs.
type RunHandle struct {
	mu             sync.Mutex
	run            *domain.SyncRun
	errors         []domain.RunError
	sinceFlush     int
	latencySamples []time.Duration
}

// ID returns the durable run ID.
func (h *RunHandle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.ID
}

// Snapshot returns a copy of the run row as currently accumulated.
func (h *RunHandle) Snapshot() domain.SyncRun {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.run
}

// CounterDelta carries one batch of counter increments into the tracker.
type CounterDelta struct {
	Processed  int
	Inserted   int
	Updated    int
	Skipped    int
	Duplicates int
	Latency    time.Duration
}

// RunTracker owns the lifecycle of sync run records and the durable
// failed-item ledger that feeds retry runs.
type RunTracker struct {
	runRepo    repository.SyncRunRepository
	failedRepo repository.FailedItemRepository
	log        *logrus.Entry
}

func NewRunTracker(runRepo repository.SyncRunRepository, failedRepo repository.FailedItemRepository, log *logrus.Entry) *RunTracker {
	return &RunTracker{runRepo: runRepo, failedRepo: failedRepo, log: log}
}

// StartRun creates the durable run row in the running state and hands back
// the handle subsequent updates must go through.
func (t *RunTracker) StartRun(accountID string, runType domain.RunType, providerName, folderID string, totalEstimate int) (*RunHandle, error) {
	run := &domain.SyncRun{
		AccountID:     accountID,
		FolderID:      folderID,
		RunType:       runType,
		Provider:      providerName,
		Status:        domain.RunStatusRunning,
		StartedAt:     time.Now(),
		TotalEstimate: totalEstimate,
	}
	if err := t.runRepo.Create(run); err != nil {
		return nil, err
	}
	t.log.WithFields(logrus.Fields{
		"run_id":     run.ID,
		"account_id": accountID,
		"run_type":   runType,
		"provider":   providerName,
	}).Info("Sync run started")
	return &RunHandle{run: run}, nil
}

// Update applies a counter delta and flushes the row to storage once enough
// progress has accumulated, so a crash mid-run leaves a recent snapshot.
func (t *RunTracker) Update(h *RunHandle, delta CounterDelta) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.run.Processed += delta.Processed
	h.run.Inserted += delta.Inserted
	h.run.Updated += delta.Updated
	h.run.Skipped += delta.Skipped
	h.run.Duplicates += delta.Duplicates
	if delta.Latency > 0 {
		h.latencySamples = append(h.latencySamples, delta.Latency)
	}

	h.sinceFlush += delta.Processed
	if h.sinceFlush < flushEvery {
		return nil
	}
	h.sinceFlush = 0
	return t.flushLocked(h)
}

// LogError records one failure on the run and, for per-message failures,
// upserts the durable failed-item record that schedules the retry. Run-level
// faults carry no candidate ID and live on the run record only.
func (t *RunTracker) LogError(h *RunHandle, candidateID string, category domain.ErrorCategory, err error) {
	now := time.Now()
	detail := ""
	if err != nil {
		detail = err.Error()
	}

	h.mu.Lock()
	h.run.Failed++
	h.errors = append(h.errors, domain.RunError{
		CandidateID: candidateID,
		Category:    category,
		Message:     detail,
		OccurredAt:  now,
	})
	accountID := h.run.AccountID
	folderID := h.run.FolderID
	h.mu.Unlock()

	t.log.WithFields(logrus.Fields{
		"account_id":   accountID,
		"candidate_id": candidateID,
		"category":     category,
	}).WithError(err).Warn("Message failed during sync")

	if candidateID == "" {
		return
	}
	if upsertErr := t.upsertFailedItem(accountID, folderID, candidateID, category, detail, now); upsertErr != nil {
		t.log.WithError(upsertErr).Error("Failed to persist failed-item record")
	}
}

func (t *RunTracker) upsertFailedItem(accountID, folderID, candidateID string, category domain.ErrorCategory, detail string, now time.Time) error {
	item, err := t.failedRepo.FindByCandidate(accountID, candidateID)
	if err != nil {
		return err
	}

	if item == nil {
		item = &domain.FailedSyncItem{
			AccountID:   accountID,
			FolderID:    folderID,
			CandidateID: candidateID,
			Category:    category,
			Detail:      detail,
			RetryCount:  0,
			NextRetryAt: now.Add(category.RetryDelay()),
			Terminal:    !category.Retryable(),
		}
		return t.failedRepo.Create(item)
	}

	item.Category = category
	item.Detail = detail
	item.RetryCount++
	item.NextRetryAt = now.Add(category.RetryDelay())
	if !category.Retryable() || item.RetryCount >= domain.MaxItemRetries {
		item.Terminal = true
	}
	return t.failedRepo.Update(item)
}

// ResolveFailedItem removes the durable failure record after the candidate
// finally processed cleanly on a retry run.
func (t *RunTracker) ResolveFailedItem(accountID, candidateID string) error {
	item, err := t.failedRepo.FindByCandidate(accountID, candidateID)
	if err != nil || item == nil {
		return err
	}
	return t.failedRepo.Delete(item.ID)
}

// DueFailedItems lists the account's failed items currently eligible for a
// retry run.
func (t *RunTracker) DueFailedItems(accountID string, limit int) ([]*domain.FailedSyncItem, error) {
	return t.failedRepo.FindDue(accountID, time.Now(), limit)
}

// CompleteRun finalizes the run row with the terminal status, derived
// latency, memory footprint and per-category error summary.
func (t *RunTracker) CompleteRun(h *RunHandle, status domain.RunStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.run.Status = status
	h.run.CompletedAt = &now
	h.run.SetErrors(h.errors)

	if n := len(h.latencySamples); n > 0 {
		var total time.Duration
		for _, d := range h.latencySamples {
			total += d
		}
		h.run.AvgLatencyMs = float64(total.Milliseconds()) / float64(n)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	h.run.MemoryBytes = memStats.Alloc

	if summary := summarizeCategories(h.errors); summary != "" {
		h.run.CategorySummary = summary
	}

	if err := t.flushLocked(h); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"run_id":     h.run.ID,
		"account_id": h.run.AccountID,
		"status":     status,
		"processed":  h.run.Processed,
		"inserted":   h.run.Inserted,
		"failed":     h.run.Failed,
		"duration":   now.Sub(h.run.StartedAt).String(),
	}).Info("Sync run finished")
	return nil
}

func (t *RunTracker) flushLocked(h *RunHandle) error {
	h.run.SetErrors(h.errors)
	return t.runRepo.Update(h.run)
}

func summarizeCategories(errs []domain.RunError) string {
	if len(errs) == 0 {
		return ""
	}
	counts := make(map[domain.ErrorCategory]int)
	for _, e := range errs {
		counts[e.Category]++
	}
	b, err := json.Marshal(counts)
	if err != nil {
		return ""
	}
	return string(b)
}

// RecentRuns lists the account's latest runs, newest first.
func (t *RunTracker) RecentRuns(accountID string, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return t.runRepo.FindRecentByAccount(accountID, limit)
}

// HealthSummary aggregates the account's recent runs into the dashboard view.
func (t *RunTracker) HealthSummary(accountID string, window int) (*domain.HealthSummary, error) {
	if window <= 0 {
		window = 20
	}
	runs, err := t.runRepo.FindRecentByAccount(accountID, window)
	if err != nil {
		return nil, err
	}

	summary := &domain.HealthSummary{AccountID: accountID}
	var completed, finished int
	var totalDuration time.Duration
	for _, run := range runs {
		summary.RunCount++
		if run.CompletedAt == nil {
			continue
		}
		finished++
		totalDuration += run.CompletedAt.Sub(run.StartedAt)
		if run.Status == domain.RunStatusCompleted {
			completed++
		}
	}
	if finished > 0 {
		summary.SuccessRate = float64(completed) / float64(finished)
		summary.AvgDurationMs = float64(totalDuration.Milliseconds()) / float64(finished)
	}

	open, err := t.failedRepo.CountOpen(accountID)
	if err != nil {
		return nil, err
	}
	summary.OpenFailedItems = open
	return summary, nil
}
