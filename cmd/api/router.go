package api

import (
	"net/http"

	accountDelivery "mailstream/internal/account/delivery"
	accountUsecase "mailstream/internal/account/usecase"
	contactDelivery "mailstream/internal/contact/delivery"
	contactRepo "mailstream/internal/contact/repository"
	syncDelivery "mailstream/internal/sync/delivery"
	syncUsecase "mailstream/internal/sync/usecase"
	"mailstream/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	cfg *config.Config,
	accounts accountUsecase.AccountUsecase,
	contacts contactRepo.ContactRepository,
	orchestrator *syncUsecase.Orchestrator,
	tracker *syncUsecase.RunTracker,
	resolver *syncUsecase.Resolver,
	processor *syncUsecase.EnrichmentProcessor,
) {
	accountHandler := accountDelivery.NewAccountHandler(accounts)
	contactHandler := contactDelivery.NewContactHandler(contacts)
	syncHandler := syncDelivery.NewSyncHandler(orchestrator, tracker, resolver, processor)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := syncDelivery.ServiceAuthMiddleware(cfg.ServiceTokenSecret)

		// Account routes (protected)
		accountRoutes := api.Group("/accounts")
		accountRoutes.Use(auth)
		{
			accountRoutes.POST("", accountHandler.Connect)
			accountRoutes.GET("", accountHandler.List)
			accountRoutes.GET("/:id", accountHandler.Get)
			accountRoutes.PATCH("/:id/sync", accountHandler.UpdateSync)
			accountRoutes.DELETE("/:id", accountHandler.Disconnect)

			accountRoutes.GET("/:id/contacts", contactHandler.ListByAccount)

			// Sync operations scoped to one account
			accountRoutes.POST("/:id/sync-runs", syncHandler.TriggerSync)
			accountRoutes.GET("/:id/sync-runs", syncHandler.GetRuns)
			accountRoutes.GET("/:id/sync-health", syncHandler.GetHealth)
			accountRoutes.POST("/:id/dedup", syncHandler.CleanupDuplicates)
		}

		// Contact routes (protected)
		contactRoutes := api.Group("/contacts")
		contactRoutes.Use(auth)
		{
			contactRoutes.POST("", contactHandler.Create)
		}

		// Run-level operations (protected)
		runRoutes := api.Group("/sync-runs")
		runRoutes.Use(auth)
		{
			runRoutes.DELETE("/:runId", syncHandler.CancelRun)
		}

		// Enrichment queue operations (protected)
		queueRoutes := api.Group("/queue")
		queueRoutes.Use(auth)
		{
			queueRoutes.GET("/stats", syncHandler.GetQueueStats)
			queueRoutes.POST("/drain", syncHandler.DrainQueue)
			queueRoutes.POST("/retry-failed", syncHandler.RetryFailedTickets)
			queueRoutes.POST("/cleanup", syncHandler.CleanupQueue)
		}
	}
}
