package services

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
)

// Tokenizer is the single token-accounting authority. Every budget
// computation in the request path and the RAG cap go through it so estimates
// cannot drift between layers.
type Tokenizer interface {
	CountTokens(text string) int
}

type tokenizerService struct {
	log *logger.Logger

	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

func NewTokenizer(log *logger.Logger) Tokenizer {
	serviceLog := log.With("service", "Tokenizer")
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		serviceLog.Warn("Failed to initialize cl100k_base encoding, falling back to character estimate", "error", err)
		encoder = nil
	}
	return &tokenizerService{log: serviceLog, encoder: encoder}
}

func (t *tokenizerService) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t.encoder == nil {
		return int(math.Ceil(float64(len([]rune(text))) / 4.0))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.encoder.Encode(text, nil, nil))
}
