package main

import (
	api "mailstream/cmd/api"
	accountdomain "mailstream/internal/account/domain"
	accountRepo "mailstream/internal/account/repository"
	accountUsecase "mailstream/internal/account/usecase"
	contactdomain "mailstream/internal/contact/domain"
	contactRepo "mailstream/internal/contact/repository"
	syncdomain "mailstream/internal/sync/domain"
	syncRepo "mailstream/internal/sync/repository"
	"mailstream/internal/sync/scheduler"
	syncUsecase "mailstream/internal/sync/usecase"
	"mailstream/pkg/config"
	"mailstream/pkg/database"
	"mailstream/pkg/logger"
	"mailstream/pkg/provider"
	"mailstream/pkg/provider/gmail"
	"mailstream/pkg/provider/imapmail"
	"mailstream/pkg/provider/outlook"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	if err := db.AutoMigrate(
		&accountdomain.Account{},
		&contactdomain.Contact{},
		&syncdomain.StoredMessage{},
		&syncdomain.SyncRun{},
		&syncdomain.FailedSyncItem{},
		&syncdomain.EnrichmentQueueItem{},
	); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	// Repositories
	accounts := accountRepo.NewAccountRepository(db)
	contacts := contactRepo.NewContactRepository(db)
	messages := syncRepo.NewMessageRepository(db)
	runs := syncRepo.NewSyncRunRepository(db)
	failedItems := syncRepo.NewFailedItemRepository(db)
	queue := syncRepo.NewEnrichmentQueueRepository(db)

	// Provider adapters
	providers := map[string]provider.MailProvider{
		accountdomain.ProviderGmail:   gmail.NewService(),
		accountdomain.ProviderOutlook: outlook.NewService(),
		accountdomain.ProviderIMAP:    imapmail.NewService(),
	}

	// Use cases
	credentials := accountUsecase.NewCredentialProvider(accounts, cfg)
	accountUC := accountUsecase.NewAccountUsecase(accounts, cfg)
	resolver := syncUsecase.NewResolver(messages, logger.WithComponent(log, "Resolver"))
	tracker := syncUsecase.NewRunTracker(runs, failedItems, logger.WithComponent(log, "Tracker"))
	processor := syncUsecase.NewEnrichmentProcessor(queue, messages, contacts, logger.WithComponent(log, "Enrichment"))
	orchestrator := syncUsecase.NewOrchestrator(
		accounts, credentials, providers, resolver, tracker, messages, queue,
		logger.WithComponent(log, "Orchestrator"),
	)

	// Background loops
	sched := scheduler.New(orchestrator, processor, cfg, logger.WithComponent(log, "Scheduler"))
	sched.Start()
	defer sched.Stop()

	// HTTP server
	r := gin.Default()
	api.SetupRoutes(r, cfg, accountUC, contacts, orchestrator, tracker, resolver, processor)

	log.WithField("port", cfg.Port).Info("Server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
