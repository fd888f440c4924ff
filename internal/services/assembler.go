package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rationalmind/rationalmind-backend/internal/clients/redis"
	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/repos"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

// AssembledPrompt is everything the relay needs to open one upstream chat
// completion for a user turn.
type AssembledPrompt struct {
	Model           ModelConfig
	Messages        []PromptMessage
	MaxOutputTokens int
	// QueryEmbedding is the embedding of the user's turn, reused when the
	// turn is persisted so it is computed at most once. Nil when embedding
	// failed; callers treat that as "no vector".
	QueryEmbedding []float32
}

// AssemblerService turns a raw user turn into a budgeted prompt: system
// instructions, profile preamble, retrieved context, then as much recent
// history as the model's context window allows, then the turn itself.
type AssemblerService interface {
	Assemble(ctx context.Context, userID, sessionID uuid.UUID, messageText string, rationalityOverride *int) (*AssembledPrompt, error)
}

type assemblerService struct {
	log       *logger.Logger
	tokenizer Tokenizer
	budget    BudgetService
	retrieval RetrievalService
	embedding EmbeddingService
	profiles  repos.ProfileRepo
	messages  repos.MessageRepo
	knowledge repos.KnowledgeRepo
	cache     redis.KnowledgeCache
}

func NewAssemblerService(
	log *logger.Logger,
	tokenizer Tokenizer,
	budget BudgetService,
	retrieval RetrievalService,
	embedding EmbeddingService,
	profiles repos.ProfileRepo,
	messages repos.MessageRepo,
	knowledge repos.KnowledgeRepo,
	cache redis.KnowledgeCache,
) AssemblerService {
	return &assemblerService{
		log:       log.With("service", "AssemblerService"),
		tokenizer: tokenizer,
		budget:    budget,
		retrieval: retrieval,
		embedding: embedding,
		profiles:  profiles,
		messages:  messages,
		knowledge: knowledge,
		cache:     cache,
	}
}

func (s *assemblerService) Assemble(ctx context.Context, userID, sessionID uuid.UUID, messageText string, rationalityOverride *int) (*AssembledPrompt, error) {
	profile, err := s.profiles.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	rationality := effectiveRationality(rationalityOverride, profile)
	systemPrompt := s.systemPromptFor(ctx, rationality)
	preamble := profilePreamble(profile)

	var (
		history  []*types.Message
		ragText  string
		ragCost  int
		queryVec []float32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		msgs, err := s.messages.ListBySessionOrdered(gctx, nil, sessionID)
		if err != nil {
			return err
		}
		history = msgs
		return nil
	})
	g.Go(func() error {
		// Retrieval depends on the embedding, so both stay on this branch.
		// Embedding failure degrades to text-only retrieval by contract.
		queryVec = s.embedding.Embed(gctx, messageText)
		ragText, ragCost = s.retrieval.Retrieve(gctx, userID, queryVec, messageText, rationality)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	model := modelFor(profile)

	fixedCost := s.tokenizer.CountTokens(systemPrompt) + MessageOverheadTokens
	fixedCost += s.tokenizer.CountTokens(messageText) + MessageOverheadTokens
	if preamble != "" {
		fixedCost += s.tokenizer.CountTokens(preamble) + MessageOverheadTokens
	}
	if ragText != "" {
		fixedCost += ragCost + MessageOverheadTokens
	}

	historyBudget := s.budget.Allocate(model.ContextWindow, TargetMaxOutputTokensChat, SafetyBufferTokens, fixedCost)
	kept := s.budget.SelectHistory(history, historyBudget)

	prompt := make([]PromptMessage, 0, len(kept)+4)
	prompt = append(prompt, PromptMessage{Role: "system", Content: systemPrompt})
	if preamble != "" {
		prompt = append(prompt, PromptMessage{Role: "system", Content: preamble})
	}
	if ragText != "" {
		prompt = append(prompt, PromptMessage{Role: "system", Content: ragText})
	}
	prompt = append(prompt, kept...)
	prompt = append(prompt, PromptMessage{Role: "user", Content: messageText})

	s.log.Debug("Prompt assembled",
		"session_id", sessionID,
		"model", model.Name,
		"rationality", rationality,
		"fixed_cost", fixedCost,
		"history_budget", historyBudget,
		"history_total", len(history),
		"history_kept", len(kept),
		"rag_tokens", ragCost,
	)

	return &AssembledPrompt{
		Model:           model,
		Messages:        prompt,
		MaxOutputTokens: TargetMaxOutputTokensChat,
		QueryEmbedding:  queryVec,
	}, nil
}

// systemPromptFor resolves the per-rationality system prompt, reading through
// the redis cache. Any lookup problem falls back to the default prompt; a
// turn never fails over a missing knowledge row.
func (s *assemblerService) systemPromptFor(ctx context.Context, rationality int) string {
	entry, ok := s.cache.GetEntry(ctx, rationality)
	if !ok {
		var err error
		entry, err = s.knowledge.GetByRationality(ctx, nil, rationality)
		if err != nil {
			s.log.Warn("Knowledge entry lookup failed, using default system prompt", "rationality", rationality, "error", err)
			return DefaultSystemPrompt
		}
		if entry != nil {
			s.cache.SetEntry(ctx, rationality, entry)
		}
	}
	if entry == nil || strings.TrimSpace(entry.SystemPrompt) == "" {
		return DefaultSystemPrompt
	}
	return entry.SystemPrompt
}

// effectiveRationality resolves the level for a turn: explicit override, then
// profile value, then the default. Out-of-range values at either source are
// ignored rather than clamped.
func effectiveRationality(override *int, profile *types.Profile) int {
	if override != nil && *override >= 1 && *override <= 5 {
		return *override
	}
	if profile != nil && profile.Rationality != nil && *profile.Rationality >= 1 && *profile.Rationality <= 5 {
		return *profile.Rationality
	}
	return DefaultRationality
}

func modelFor(profile *types.Profile) ModelConfig {
	if profile == nil {
		return ModelFree
	}
	return SelectModel(profile.Tier)
}

// profilePreamble renders the known-facts block. Only populated fields
// appear; with nothing known the block is omitted entirely.
func profilePreamble(profile *types.Profile) string {
	if profile == nil {
		return ""
	}
	var lines []string
	add := func(label string, value *string) {
		if value != nil && strings.TrimSpace(*value) != "" {
			lines = append(lines, label+": "+strings.TrimSpace(*value))
		}
	}
	add("Name", profile.Name)
	add("Age group", profile.AgeGroup)
	add("Main topic of concern", profile.MainTopic)
	add("Goal", profile.Goal)
	add("Dynamic profile", profile.DynamicProfile)
	add("Main cognitive pattern", profile.MainPattern)
	if profile.Rationality != nil {
		lines = append(lines, "Rationality level: "+strconv.Itoa(*profile.Rationality))
	}
	if len(lines) == 0 {
		return ""
	}
	return "WHAT YOU KNOW ABOUT THE USER:\n" + strings.Join(lines, "\n")
}
