package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rationalmind/rationalmind-backend/internal/types"
)

func mkMessages(contents ...string) []*types.Message {
	msgs := make([]*types.Message, 0, len(contents))
	for i, c := range contents {
		role := types.SenderRoleUser
		if i%2 == 1 {
			role = types.SenderRoleAI
		}
		msgs = append(msgs, &types.Message{SenderRole: role, ContentText: c})
	}
	return msgs
}

func TestAllocateSubtractsReservations(t *testing.T) {
	s := NewBudgetService(newTestLogger(), wordTokenizer{})

	if got := s.Allocate(64000, 300, 250, 1000); got != 62450 {
		t.Fatalf("Allocate = %d, want 62450", got)
	}
	if got := s.Allocate(1000, 300, 250, 500); got >= 0 {
		// Exhausted budgets go non-positive rather than clamping to zero,
		// and SelectHistory treats both the same.
		t.Fatalf("Allocate = %d, want negative", got)
	}
}

func TestSelectHistoryKeepsNewestSuffix(t *testing.T) {
	s := NewBudgetService(newTestLogger(), wordTokenizer{})
	msgs := mkMessages(
		"one two three", // 3 + 4 overhead = 7
		"four five",     // 2 + 4 = 6
		"six",           // 1 + 4 = 5
	)

	kept := s.SelectHistory(msgs, 12)
	if len(kept) != 2 {
		t.Fatalf("kept %d messages, want 2", len(kept))
	}
	if kept[0].Content != "four five" || kept[1].Content != "six" {
		t.Fatalf("wrong suffix kept: %+v", kept)
	}
	if kept[0].Role != "assistant" || kept[1].Role != "user" {
		t.Fatalf("roles not mapped: %+v", kept)
	}
}

func TestSelectHistoryZeroBudget(t *testing.T) {
	s := NewBudgetService(newTestLogger(), wordTokenizer{})
	if kept := s.SelectHistory(mkMessages("hello"), 0); kept != nil {
		t.Fatalf("expected nil for zero budget, got %+v", kept)
	}
	if kept := s.SelectHistory(mkMessages("hello"), -5); kept != nil {
		t.Fatalf("expected nil for negative budget, got %+v", kept)
	}
}

func TestSelectHistoryDropsMessageThatOverflows(t *testing.T) {
	s := NewBudgetService(newTestLogger(), wordTokenizer{})
	// Newest message alone costs 6; a budget of 5 keeps nothing even though
	// an older, cheaper message would fit. The suffix is contiguous, never
	// cherry-picked.
	msgs := mkMessages("tiny", "one two long message here")
	if kept := s.SelectHistory(msgs, 5); kept != nil {
		t.Fatalf("expected nil, got %+v", kept)
	}
}

func TestSelectHistoryContiguousSuffixProperty(t *testing.T) {
	s := NewBudgetService(newTestLogger(), wordTokenizer{})

	var contents []string
	for i := 0; i < 50; i++ {
		contents = append(contents, fmt.Sprintf("message number %d with index %d", i, i))
	}
	msgs := mkMessages(contents...)

	for _, budget := range []int{0, 10, 55, 130, 1000, 100000} {
		kept := s.SelectHistory(msgs, budget)

		used := 0
		for _, m := range kept {
			used += len(strings.Fields(m.Content)) + MessageOverheadTokens
		}
		if used > budget {
			t.Fatalf("budget %d exceeded: used %d", budget, used)
		}

		// Whatever is kept must be exactly the tail of the original slice.
		offset := len(msgs) - len(kept)
		for i, m := range kept {
			if m.Content != msgs[offset+i].ContentText {
				t.Fatalf("budget %d: kept[%d]=%q is not the contiguous tail", budget, i, m.Content)
			}
		}
	}
}
