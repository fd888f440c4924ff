package app

import (
	"github.com/gin-gonic/gin"

	"github.com/rationalmind/rationalmind-backend/internal/server"
)

func wireRouter(cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AuthMiddleware: middleware.Auth,
		SessionHandler: handlers.Session,
		ChatHandler:    handlers.Chat,
		ProfileHandler: handlers.Profile,
	})
}
