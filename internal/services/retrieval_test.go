package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rationalmind/rationalmind-backend/internal/types"
)

func newRetrieval(sessions *fakeSessionRepo, people *fakePersonRepo, knowledge *fakeKnowledgeRepo) RetrievalService {
	return NewRetrievalService(newTestLogger(), wordTokenizer{}, sessions, people, knowledge)
}

func TestRetrieveEmptyWhenNothingFound(t *testing.T) {
	s := newRetrieval(&fakeSessionRepo{}, &fakePersonRepo{}, &fakeKnowledgeRepo{})
	text, tokens := s.Retrieve(context.Background(), uuid.New(), []float32{0.1}, "hello there", 3)
	if text != "" || tokens != 0 {
		t.Fatalf("expected empty result, got %q (%d tokens)", text, tokens)
	}
}

func TestRetrieveOrdersAndLabelsSources(t *testing.T) {
	sessions := &fakeSessionRepo{
		summaryMatches: []*types.Session{{Summary: strptr("spent the week ruminating")}},
		patternMatches: []*types.Session{{Patterns: strptr("- catastrophizing")}},
	}
	people := &fakePersonRepo{
		vector: []*types.Person{{Name: "Ana", Description: "a close friend"}},
	}
	knowledge := &fakeKnowledgeRepo{
		matches: []*types.KnowledgeEntry{{KnowledgeText: "thought defusion basics"}},
	}

	s := newRetrieval(sessions, people, knowledge)
	text, tokens := s.Retrieve(context.Background(), uuid.New(), []float32{0.1}, "talked with friends", 3)
	if tokens <= 0 {
		t.Fatalf("expected positive token count")
	}
	if !strings.HasPrefix(text, RAGContextHeader) {
		t.Fatalf("missing header in %q", text)
	}

	idxSummary := strings.Index(text, "[Past Session Summary]: spent the week ruminating")
	idxPattern := strings.Index(text, "[Past Session Pattern]: - catastrophizing")
	idxPeople := strings.Index(text, "[Regarding People Mentioned]:\nAna: a close friend")
	idxKnowledge := strings.Index(text, "[Relevant Info for Overthinking]: thought defusion basics")
	for i, idx := range []int{idxSummary, idxPattern, idxPeople, idxKnowledge} {
		if idx < 0 {
			t.Fatalf("source %d missing from %q", i, text)
		}
	}
	if !(idxSummary < idxPattern && idxPattern < idxPeople && idxPeople < idxKnowledge) {
		t.Fatalf("sources out of order in %q", text)
	}
}

func TestRetrieveExactPersonMatchShortCircuits(t *testing.T) {
	people := &fakePersonRepo{
		exact:  []*types.Person{{Name: "Marta", Description: "her sister"}},
		vector: []*types.Person{{Name: "Wrong", Description: "should not appear"}},
	}
	s := newRetrieval(&fakeSessionRepo{}, people, &fakeKnowledgeRepo{})

	text, _ := s.Retrieve(context.Background(), uuid.New(), []float32{0.1}, "I argued with Marta again.", 3)
	if !strings.Contains(text, "Marta: her sister") {
		t.Fatalf("exact match missing from %q", text)
	}
	if strings.Contains(text, "Wrong") {
		t.Fatalf("vector fallback used despite exact match: %q", text)
	}
	if len(people.exactSeen) == 0 {
		t.Fatalf("exact lookup never attempted")
	}
	// The lookup key space is lowercase alphanumeric tokens.
	for _, tok := range people.exactSeen[0] {
		if tok != strings.ToLower(tok) {
			t.Fatalf("non-lowercase token %q", tok)
		}
	}
}

func TestRetrieveAmbiguousExactMatchFallsBackToVector(t *testing.T) {
	people := &fakePersonRepo{
		exact: []*types.Person{
			{Name: "Alex", Description: "coworker"},
			{Name: "Alex", Description: "cousin"},
		},
		vector: []*types.Person{{Name: "Alex", Description: "the coworker"}},
	}
	s := newRetrieval(&fakeSessionRepo{}, people, &fakeKnowledgeRepo{})

	text, _ := s.Retrieve(context.Background(), uuid.New(), []float32{0.1}, "Alex said something odd", 3)
	if !strings.Contains(text, "Alex: the coworker") {
		t.Fatalf("vector fallback missing from %q", text)
	}
}

func TestRetrieveSkipsVectorSourcesWithoutEmbedding(t *testing.T) {
	sessions := &fakeSessionRepo{
		summaryMatches: []*types.Session{{Summary: strptr("should not be used")}},
	}
	people := &fakePersonRepo{
		exact: []*types.Person{{Name: "Ben", Description: "his roommate"}},
	}
	s := newRetrieval(sessions, people, &fakeKnowledgeRepo{})

	text, _ := s.Retrieve(context.Background(), uuid.New(), nil, "Ben was around", 3)
	if strings.Contains(text, "should not be used") {
		t.Fatalf("vector source ran without an embedding: %q", text)
	}
	if !strings.Contains(text, "Ben: his roommate") {
		t.Fatalf("exact person match should still work without embedding: %q", text)
	}
}

func TestRetrieveEnforcesTokenCeiling(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("word ", 3000))
	sessions := &fakeSessionRepo{
		summaryMatches: []*types.Session{{Summary: &long}},
	}
	s := newRetrieval(sessions, &fakePersonRepo{}, &fakeKnowledgeRepo{})

	text, tokens := s.Retrieve(context.Background(), uuid.New(), []float32{0.1}, "hi", 3)
	if tokens > RAGContextTokenCeiling {
		t.Fatalf("returned %d tokens, ceiling is %d", tokens, RAGContextTokenCeiling)
	}
	if text == "" {
		t.Fatalf("expected truncated text, got empty")
	}
	if got := len(strings.Fields(text)); got != tokens {
		t.Fatalf("reported %d tokens but text measures %d", tokens, got)
	}
}
