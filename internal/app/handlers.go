package app

import (
	"github.com/rationalmind/rationalmind-backend/internal/handlers"
	"github.com/rationalmind/rationalmind-backend/internal/logger"
)

type Handlers struct {
	Session *handlers.SessionHandler
	Chat    *handlers.ChatHandler
	Profile *handlers.ProfileHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Session: handlers.NewSessionHandler(services.Session),
		Chat:    handlers.NewChatHandler(log, services.Session, services.Relay),
		Profile: handlers.NewProfileHandler(reposet.Profile),
	}
}
