package main

import (
	"log"

	api "linecal-backend/cmd/api"
	authdomain "linecal-backend/internal/auth/domain"
	authRepo "linecal-backend/internal/auth/repository"
	authUsecase "linecal-backend/internal/auth/usecase"
	scheduledomain "linecal-backend/internal/schedule/domain"
	scheduleRepo "linecal-backend/internal/schedule/repository"
	scheduleUsecase "linecal-backend/internal/schedule/usecase"
	webhookDelivery "linecal-backend/internal/webhook/delivery"
	"linecal-backend/pkg/config"
	"linecal-backend/pkg/crypto"
	"linecal-backend/pkg/database"
	"linecal-backend/pkg/gemini"
	"linecal-backend/pkg/googlecal"
	"linecal-backend/pkg/line"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &scheduledomain.PendingSchedule{}, &scheduledomain.ScheduleHistory{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepository := authRepo.NewUserRepository(db)
	scheduleRepository := scheduleRepo.NewScheduleRepository(db)

	// External collaborators
	vault := crypto.NewVault(cfg.EncryptionKey)
	googleService := googlecal.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	geminiService := gemini.NewGeminiService(cfg.GeminiAPIKey)
	lineClient := line.NewClient(cfg.LineChannelAccessToken)

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepository, googleService, vault, cfg)
	scheduleUsecaseInstance := scheduleUsecase.NewScheduleUsecase(scheduleRepository, authUsecaseInstance, geminiService, googleService, cfg.ExtractionTimeout)

	// Webhook dispatcher
	webhookHandler := webhookDelivery.NewWebhookHandler(authUsecaseInstance, scheduleUsecaseInstance, lineClient, cfg.BaseURL())

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, webhookHandler, cfg)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
