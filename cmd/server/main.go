package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"settlement-backoffice/internal/config"
	"settlement-backoffice/internal/models"
	"settlement-backoffice/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	settingsPath := os.Getenv("SETTINGS_FILE")
	if settingsPath == "" {
		settingsPath = "configs/reconciliation.yaml"
	}
	settings, err := config.NewLoader(settingsPath)
	if err != nil {
		logger.Error("failed to load settings", "path", settingsPath, "err", err)
		os.Exit(1)
	}
	if stop, err := settings.Watch(); err != nil {
		logger.Warn("settings hot-reload disabled", "err", err)
	} else {
		defer stop()
	}

	db := config.InitDB()

	db.AutoMigrate(
		&models.TransactionRecord{},
		&models.Merchant{},
		&models.ReconciliationRun{},
		&models.MatchAuditLog{},
	)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, settings, logger)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	r.Run(addr)
}
