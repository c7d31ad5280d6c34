package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/pdfqa/internal/middleware"
)

type RouterDeps struct {
	Chat   *ChatHandler
	Ingest *IngestHandler
	Health *HealthHandler
	Files  *FileHandler
	// ChatRateLimit is the per client gap between chat calls, 0 disables it.
	ChatRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/chat", middleware.RateLimit(deps.ChatRateLimit), deps.Chat.Chat)
	api.POST("/ingest", deps.Ingest.Ingest)
	api.GET("/health", deps.Health.Health)
	api.GET("/files/:name", deps.Files.Get)
}
