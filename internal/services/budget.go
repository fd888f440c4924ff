package services

import (
	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

// BudgetService owns token-budget arithmetic and history truncation for the
// prompt assembly path.
type BudgetService interface {
	// Allocate returns the token allowance left for history once the output
	// reservation, safety buffer, and fixed prompt costs are subtracted. A
	// non-positive result means "send no history", never a failure.
	Allocate(modelContextWindow, targetOutputTokens, safetyBufferTokens, fixedCostTokens int) int

	// SelectHistory keeps the maximal contiguous suffix of the conversation
	// that fits the budget: newest first until one message would overflow,
	// then re-reversed into chronological order. Recency beats completeness;
	// the result never has gaps.
	SelectHistory(messages []*types.Message, historyBudget int) []PromptMessage
}

type budgetService struct {
	log       *logger.Logger
	tokenizer Tokenizer
}

func NewBudgetService(log *logger.Logger, tokenizer Tokenizer) BudgetService {
	return &budgetService{log: log.With("service", "BudgetService"), tokenizer: tokenizer}
}

func (s *budgetService) Allocate(modelContextWindow, targetOutputTokens, safetyBufferTokens, fixedCostTokens int) int {
	return modelContextWindow - targetOutputTokens - safetyBufferTokens - fixedCostTokens
}

func (s *budgetService) SelectHistory(messages []*types.Message, historyBudget int) []PromptMessage {
	if historyBudget <= 0 || len(messages) == 0 {
		return nil
	}

	used := 0
	kept := make([]PromptMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		cost := s.tokenizer.CountTokens(msg.ContentText) + MessageOverheadTokens
		if used+cost > historyBudget {
			break
		}
		used += cost
		role := msg.SenderRole
		if role == types.SenderRoleAI {
			role = "assistant"
		}
		kept = append(kept, PromptMessage{Role: role, Content: msg.ContentText})
	}

	// kept was collected newest-first; restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	if len(kept) == 0 {
		return nil
	}
	s.log.Debug("History truncated", "original", len(messages), "kept", len(kept), "tokens_used", used, "budget", historyBudget)
	return kept
}
