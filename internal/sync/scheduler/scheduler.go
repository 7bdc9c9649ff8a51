package scheduler

import (
	"context"
	"time"

	"mailstream/internal/sync/usecase"
	"mailstream/pkg/config"

	"github.com/sirupsen/logrus"
)

// Scheduler owns the periodic background work: automatic account syncs,
// enrichment queue drains and the daily queue cleanup. Each loop runs in its
// own goroutine and stops together via Stop.
type Scheduler struct {
	orchestrator *usecase.Orchestrator
	processor    *usecase.EnrichmentProcessor
	cfg          *config.Config
	log          *logrus.Entry
	stopChan     chan struct{}
}

func New(orchestrator *usecase.Orchestrator, processor *usecase.EnrichmentProcessor, cfg *config.Config, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		processor:    processor,
		cfg:          cfg,
		log:          log,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the background loops.
func (s *Scheduler) Start() {
	s.log.WithFields(logrus.Fields{
		"sync_interval":  s.cfg.SyncInterval.String(),
		"drain_interval": s.cfg.DrainInterval.String(),
	}).Info("Starting background scheduler")

	go s.syncLoop()
	go s.drainLoop()
	go s.cleanupLoop()
}

// Stop signals every loop to exit. In-flight work finishes its current pass.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) syncLoop() {
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.orchestrator.SyncDueAccounts(context.Background(), s.cfg.SyncInterval)
		case <-s.stopChan:
			s.log.Info("Sync loop stopped")
			return
		}
	}
}

func (s *Scheduler) drainLoop() {
	// Run once on startup so pending tickets left by a previous process
	// don't wait a full interval.
	s.drainOnce()

	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainOnce()
		case <-s.stopChan:
			s.log.Info("Drain loop stopped")
			return
		}
	}
}

func (s *Scheduler) drainOnce() {
	result, err := s.processor.Drain(s.cfg.DrainBatchSize)
	if err != nil {
		s.log.WithError(err).Error("Queue drain failed")
		return
	}
	if result.Picked > 0 {
		s.log.WithFields(logrus.Fields{
			"picked":    result.Picked,
			"completed": result.Completed,
			"failed":    result.Failed,
			"requeued":  result.Requeued,
		}).Info("Drained enrichment queue")
	}
}

func (s *Scheduler) cleanupLoop() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.processor.Cleanup(s.cfg.QueueRetentionDays); err != nil {
				s.log.WithError(err).Error("Queue cleanup failed")
			}
		case <-s.stopChan:
			s.log.Info("Cleanup loop stopped")
			return
		}
	}
}
