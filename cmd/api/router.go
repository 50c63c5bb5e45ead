package api

import (
	"net/http"

	authDelivery "linecal-backend/internal/auth/delivery"
	authUsecase "linecal-backend/internal/auth/usecase"
	webhookDelivery "linecal-backend/internal/webhook/delivery"
	"linecal-backend/pkg/config"
	"linecal-backend/pkg/line"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, webhookHandler *webhookDelivery.WebhookHandler, cfg *config.Config) {
	authHandler := authDelivery.NewAuthHandler(authUc)

	// Health check (no auth required)
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// LINE webhook: signature over raw bytes first, then dispatch
	r.POST("/webhook", line.SignatureMiddleware(cfg.LineChannelSecret), webhookHandler.HandleWebhook)

	// Google OAuth flow
	auth := r.Group("/auth")
	{
		auth.GET("/google", authHandler.GoogleAuth)
		auth.GET("/google/callback", authHandler.GoogleCallback)
	}
}
