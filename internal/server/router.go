package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rationalmind/rationalmind-backend/internal/handlers"
	"github.com/rationalmind/rationalmind-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	AuthMiddleware *middleware.AuthMiddleware
	SessionHandler *handlers.SessionHandler
	ChatHandler    *handlers.ChatHandler
	ProfileHandler *handlers.ProfileHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	v1 := router.Group("/v1")
	v1.Use(cfg.AuthMiddleware.RequireAuth())

	v1.POST("/sessions", cfg.SessionHandler.Create)
	v1.POST("/sessions/end", cfg.SessionHandler.End)
	v1.GET("/sessions", cfg.SessionHandler.List)
	v1.GET("/sessions/:id/messages", cfg.SessionHandler.Messages)

	v1.GET("/chat/stream", cfg.ChatHandler.Stream)

	v1.GET("/profile", cfg.ProfileHandler.GetMe)

	return router
}
