package app

import (
	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/repos"
)

type Repos struct {
	Session   repos.SessionRepo
	Message   repos.MessageRepo
	Profile   repos.ProfileRepo
	Person    repos.PersonRepo
	Knowledge repos.KnowledgeRepo
	JobRun    repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Session:   repos.NewSessionRepo(db, log),
		Message:   repos.NewMessageRepo(db, log),
		Profile:   repos.NewProfileRepo(db, log),
		Person:    repos.NewPersonRepo(db, log),
		Knowledge: repos.NewKnowledgeRepo(db, log),
		JobRun:    repos.NewJobRunRepo(db, log),
	}
}
