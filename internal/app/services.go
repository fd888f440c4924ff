package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/clients/redis"
	"github.com/rationalmind/rationalmind-backend/internal/jobs"
	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/services"
)

type Services struct {
	AI         services.AIClient
	Tokenizer  services.Tokenizer
	Embedding  services.EmbeddingService
	Budget     services.BudgetService
	Retrieval  services.RetrievalService
	Assembler  services.AssemblerService
	Relay      services.RelayService
	Session    services.SessionService
	Enrichment *services.EnrichmentService
	Auth       services.AuthService

	KnowledgeCache redis.KnowledgeCache
	JobRegistry    *jobs.Registry
	JobWorker      *jobs.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	aiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init openai client: %w", err)
	}
	authService, err := services.NewAuthService(log)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}
	knowledgeCache, err := redis.NewKnowledgeCache(log)
	if err != nil {
		return Services{}, fmt.Errorf("init knowledge cache: %w", err)
	}

	tokenizer := services.NewTokenizer(log)
	embedding := services.NewEmbeddingService(log, aiClient)
	budget := services.NewBudgetService(log, tokenizer)
	retrieval := services.NewRetrievalService(log, tokenizer, reposet.Session, reposet.Person, reposet.Knowledge)
	assembler := services.NewAssemblerService(log, tokenizer, budget, retrieval, embedding, reposet.Profile, reposet.Message, reposet.Knowledge, knowledgeCache)
	relay := services.NewRelayService(log, aiClient, assembler, embedding, reposet.Message)
	session := services.NewSessionService(log, db, reposet.Session, reposet.Message, reposet.JobRun)
	enrichment := services.NewEnrichmentService(log, aiClient, embedding, reposet.Session, reposet.Message, reposet.Profile, reposet.Person)

	registry := jobs.NewRegistry()
	if err := registry.Register(enrichment); err != nil {
		return Services{}, fmt.Errorf("register enrichment handler: %w", err)
	}
	worker := jobs.NewWorker(db, log, reposet.JobRun, registry)

	return Services{
		AI:             aiClient,
		Tokenizer:      tokenizer,
		Embedding:      embedding,
		Budget:         budget,
		Retrieval:      retrieval,
		Assembler:      assembler,
		Relay:          relay,
		Session:        session,
		Enrichment:     enrichment,
		Auth:           authService,
		KnowledgeCache: knowledgeCache,
		JobRegistry:    registry,
		JobWorker:      worker,
	}, nil
}
