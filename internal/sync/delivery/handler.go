package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"mailstream/internal/sync/domain"
	syncdto "mailstream/internal/sync/dto"
	"mailstream/internal/sync/usecase"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	orchestrator *usecase.Orchestrator
	tracker      *usecase.RunTracker
	resolver     *usecase.Resolver
	processor    *usecase.EnrichmentProcessor
}

func NewSyncHandler(orchestrator *usecase.Orchestrator, tracker *usecase.RunTracker, resolver *usecase.Resolver, processor *usecase.EnrichmentProcessor) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		tracker:      tracker,
		resolver:     resolver,
		processor:    processor,
	}
}

// TriggerSync starts a background run for the account and returns its ID.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	accountID := c.Param("id")

	var req syncdto.TriggerSyncRequest
	_ = c.ShouldBindJSON(&req)

	runType := domain.RunTypeManual
	switch req.RunType {
	case string(domain.RunTypeInitial):
		runType = domain.RunTypeInitial
	case string(domain.RunTypeRetry):
		runType = domain.RunTypeRetry
	case "", string(domain.RunTypeManual):
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown run type"})
		return
	}

	runID, err := h.orchestrator.StartAsync(accountID, runType, req.FolderID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		case errors.Is(err, usecase.ErrSyncInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, syncdto.TriggerSyncResponse{
		AccountID: accountID,
		RunID:     runID,
		Status:    string(domain.RunStatusRunning),
	})
}

// CancelRun requests cooperative cancellation of an active run.
func (h *SyncHandler) CancelRun(c *gin.Context) {
	runID := c.Param("runId")
	if err := h.orchestrator.Cancel(runID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found or not active"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "status": "cancelling"})
}

// GetRuns lists the account's recent runs, newest first.
func (h *SyncHandler) GetRuns(c *gin.Context) {
	accountID := c.Param("id")

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.tracker.RecentRuns(accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, syncdto.RunsResponse{Runs: runs})
}

// GetHealth returns the aggregated health view for the account.
func (h *SyncHandler) GetHealth(c *gin.Context) {
	accountID := c.Param("id")

	window := 0
	if windowStr := c.Query("window"); windowStr != "" {
		if parsed, err := strconv.Atoi(windowStr); err == nil && parsed > 0 {
			window = parsed
		}
	}

	summary, err := h.tracker.HealthSummary(accountID, window)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CleanupDuplicates runs the bulk dedup pass for the account.
func (h *SyncHandler) CleanupDuplicates(c *gin.Context) {
	accountID := c.Param("id")

	result, err := h.resolver.CleanupDuplicates(accountID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetQueueStats returns the enrichment queue's per-status counts.
func (h *SyncHandler) GetQueueStats(c *gin.Context) {
	stats, err := h.processor.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// DrainQueue runs one drain pass immediately.
func (h *SyncHandler) DrainQueue(c *gin.Context) {
	batchSize := 25
	if sizeStr := c.Query("batch_size"); sizeStr != "" {
		if parsed, err := strconv.Atoi(sizeStr); err == nil && parsed > 0 {
			batchSize = parsed
		}
	}

	result, err := h.processor.Drain(batchSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetryFailedTickets revives failed enrichment tickets for reprocessing.
func (h *SyncHandler) RetryFailedTickets(c *gin.Context) {
	var req syncdto.RetryFailedRequest
	_ = c.ShouldBindJSON(&req)

	revived, err := h.processor.RetryFailed(req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, syncdto.RetryFailedResponse{Revived: revived})
}

// CleanupQueue prunes finished tickets past the retention window.
func (h *SyncHandler) CleanupQueue(c *gin.Context) {
	retentionDays := 0
	if daysStr := c.Query("retention_days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil && parsed > 0 {
			retentionDays = parsed
		}
	}

	removed, err := h.processor.Cleanup(retentionDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, syncdto.CleanupResponse{Removed: removed})
}
