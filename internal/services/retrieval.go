package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/repos"
)

// RetrievalService builds the RAG block for one user turn from four
// independent sources. Sources are failure-isolated: a broken lookup logs
// and contributes nothing, it never blocks the rest.
type RetrievalService interface {
	Retrieve(ctx context.Context, userID uuid.UUID, queryEmbedding []float32, messageText string, rationality int) (string, int)
}

type retrievalService struct {
	log       *logger.Logger
	tokenizer Tokenizer
	sessions  repos.SessionRepo
	people    repos.PersonRepo
	knowledge repos.KnowledgeRepo
}

func NewRetrievalService(
	log *logger.Logger,
	tokenizer Tokenizer,
	sessions repos.SessionRepo,
	people repos.PersonRepo,
	knowledge repos.KnowledgeRepo,
) RetrievalService {
	return &retrievalService{
		log:       log.With("service", "RetrievalService"),
		tokenizer: tokenizer,
		sessions:  sessions,
		people:    people,
		knowledge: knowledge,
	}
}

// Retrieve returns the assembled context block and its token cost, both zero
// when nothing relevant was found. Contributions are ordered summaries,
// patterns, people, knowledge; the cap truncation below eats from the end,
// so position encodes relevance.
func (s *retrievalService) Retrieve(ctx context.Context, userID uuid.UUID, queryEmbedding []float32, messageText string, rationality int) (string, int) {
	var (
		summaryBlocks []string
		patternBlocks []string
		peopleBlock   string
		domainBlocks  []string
	)
	haveEmbedding := len(queryEmbedding) > 0
	var query pgvector.Vector
	if haveEmbedding {
		query = pgvector.NewVector(queryEmbedding)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if !haveEmbedding {
			return nil
		}
		matches, err := s.sessions.MatchSummariesByEmbedding(gctx, nil, userID, query, RAGSessionsLimit)
		if err != nil {
			s.log.Warn("Summary retrieval failed", "error", err)
			return nil
		}
		for _, m := range matches {
			if m.Summary != nil && *m.Summary != "" {
				summaryBlocks = append(summaryBlocks, "[Past Session Summary]: "+*m.Summary)
			}
		}
		return nil
	})

	g.Go(func() error {
		if !haveEmbedding {
			return nil
		}
		matches, err := s.sessions.MatchPatternsByEmbedding(gctx, nil, userID, query, RAGSessionsLimit)
		if err != nil {
			s.log.Warn("Pattern retrieval failed", "error", err)
			return nil
		}
		for _, m := range matches {
			if m.Patterns != nil && *m.Patterns != "" {
				patternBlocks = append(patternBlocks, "[Past Session Pattern]: "+*m.Patterns)
			}
		}
		return nil
	})

	g.Go(func() error {
		peopleBlock = s.retrievePeople(gctx, userID, query, haveEmbedding, messageText)
		return nil
	})

	g.Go(func() error {
		if !haveEmbedding {
			return nil
		}
		matches, err := s.knowledge.MatchByEmbedding(gctx, nil, rationality, query, RAGKnowledgeLimit)
		if err != nil {
			s.log.Warn("Knowledge retrieval failed", "rationality", rationality, "error", err)
			return nil
		}
		for _, k := range matches {
			if k.KnowledgeText != "" {
				domainBlocks = append(domainBlocks, "[Relevant Info for Overthinking]: "+k.KnowledgeText)
			}
		}
		return nil
	})

	_ = g.Wait()

	var blocks []string
	blocks = append(blocks, summaryBlocks...)
	blocks = append(blocks, patternBlocks...)
	if peopleBlock != "" {
		blocks = append(blocks, peopleBlock)
	}
	blocks = append(blocks, domainBlocks...)
	if len(blocks) == 0 {
		return "", 0
	}

	text := RAGContextHeader + "\n" + strings.Join(blocks, "\n\n")
	return s.applyCap(text)
}

// retrievePeople tries an exact lowercase-token match first; a single hit is
// precise enough to use alone. Zero or multiple hits fall back to vector
// search, since exact matching cannot disambiguate common names.
func (s *retrievalService) retrievePeople(ctx context.Context, userID uuid.UUID, query pgvector.Vector, haveEmbedding bool, messageText string) string {
	tokens := lowercaseTokens(messageText)
	if len(tokens) > 0 {
		matches, err := s.people.GetByLowercaseNames(ctx, nil, userID, tokens)
		if err != nil {
			s.log.Warn("Exact person lookup failed", "error", err)
		} else if len(matches) == 1 {
			p := matches[0]
			if p.Description != "" {
				return "[Regarding People Mentioned]:\n" + p.Name + ": " + p.Description
			}
		} else if len(matches) > 1 {
			s.log.Debug("Multiple exact person matches, disambiguating by vector", "count", len(matches))
		}
	}

	if !haveEmbedding {
		return ""
	}
	matches, err := s.people.MatchByNameEmbedding(ctx, nil, userID, query, RAGPeopleLimit)
	if err != nil {
		s.log.Warn("Vector person lookup failed", "error", err)
		return ""
	}
	var contexts []string
	for _, p := range matches {
		if p.Description == "" {
			continue
		}
		contexts = append(contexts, p.Name+": "+p.Description)
	}
	if len(contexts) == 0 {
		return ""
	}
	return "[Regarding People Mentioned]:\n" + strings.Join(contexts, "\n---\n")
}

// applyCap enforces the fixed RAG ceiling so retrieval can never starve the
// history budget. Overflow is cut from the end, dropping the lowest-ranked
// content first, then re-measured for accuracy.
func (s *retrievalService) applyCap(text string) (string, int) {
	tokens := s.tokenizer.CountTokens(text)
	for i := 0; tokens > RAGContextTokenCeiling && i < 4; i++ {
		runes := []rune(text)
		keep := len(runes) * RAGContextTokenCeiling / tokens
		if keep <= 0 {
			return "", 0
		}
		text = string(runes[:keep])
		tokens = s.tokenizer.CountTokens(text)
	}
	if tokens > RAGContextTokenCeiling {
		return "", 0
	}
	return text, tokens
}

// lowercaseTokens splits text into lowercase alphanumeric tokens, the dedup
// key space person names are stored in.
func lowercaseTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
