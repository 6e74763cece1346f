package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"settlement-backoffice/internal/config"
	handler "settlement-backoffice/internal/handlers"
	"settlement-backoffice/internal/notifier"
	"settlement-backoffice/internal/repository"
	service "settlement-backoffice/internal/services/reconciliation"
)

// RegisterRoutes wires repositories, the reconciliation service and the
// HTTP surface.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, settings *config.Loader, logger *slog.Logger) {
	transactionRepo := repository.NewTransactionRepository(db)
	merchantRepo := repository.NewMerchantRepository(db)
	runRepo := repository.NewRunRepository(db)

	var n notifier.Notifier = notifier.NewLogNotifier(logger)
	if url := settings.Settings().Notifier.WebhookURL; url != "" {
		n = notifier.NewWebhookNotifier(url)
	}

	reconService := service.NewService(
		transactionRepo,
		merchantRepo,
		runRepo,
		n,
		logger,
		settings.Settings().Engine.ProgressEveryRecords,
	)

	reconHandler := handler.NewReconciliationHandler(reconService, merchantRepo, settings)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	recon := api.Group("/reconciliation")
	recon.POST("/runs", reconHandler.StartRun)
	recon.GET("/runs", reconHandler.ListRuns)
	recon.GET("/runs/:runId", reconHandler.GetRun)
	recon.GET("/runs/:runId/progress", reconHandler.GetRunProgress)
	recon.GET("/runs/:runId/transactions", reconHandler.ListRunTransactions)
	recon.POST("/runs/:runId/cancel", reconHandler.CancelRun)

	tx := api.Group("/transactions")
	tx.POST("", reconHandler.CreateTransaction)

	merchants := api.Group("/merchants")
	{
		merchants.POST("", reconHandler.CreateMerchant)
		merchants.GET("", reconHandler.ListMerchants)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
