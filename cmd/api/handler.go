package api

import (
	authUsecase "linecal-backend/internal/auth/usecase"
	webhookDelivery "linecal-backend/internal/webhook/delivery"
	"linecal-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	webhookHandler *webhookDelivery.WebhookHandler
	config         *config.Config
}

func NewHandler(authUc authUsecase.AuthUsecase, webhookHandler *webhookDelivery.WebhookHandler, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:    authUc,
		webhookHandler: webhookHandler,
		config:         cfg,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	SetupRoutes(r, h.authUsecase, h.webhookHandler, h.config)

	return r.Run(addr)
}
