package services

import (
	"context"
	"strings"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
)

// EmbeddingService is the gateway contract: embed(text) -> vector | nil.
// Failures never propagate; callers that receive nil simply proceed without
// an embedding (degraded retrieval, null column).
type EmbeddingService interface {
	Embed(ctx context.Context, text string) []float32
}

type embeddingService struct {
	log *logger.Logger
	ai  AIClient
}

func NewEmbeddingService(log *logger.Logger, ai AIClient) EmbeddingService {
	return &embeddingService{log: log.With("service", "EmbeddingService"), ai: ai}
}

func (s *embeddingService) Embed(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	vec, err := s.ai.Embed(ctx, text)
	if err != nil {
		s.log.Warn("Embedding failed, degrading to nil", "error", err)
		return nil
	}
	return vec
}
