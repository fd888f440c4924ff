package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/rationalmind/rationalmind-backend/internal/jobs"
	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/repos"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

// EnrichmentService distils a completed session into durable artifacts:
// summary, patterns, profile updates, and the people mentioned. Steps are
// failure-isolated; one broken step never blocks the others, and the whole
// run is idempotent so the job queue can safely retry it.
type EnrichmentService struct {
	log       *logger.Logger
	ai        AIClient
	embedding EmbeddingService
	sessions  repos.SessionRepo
	messages  repos.MessageRepo
	profiles  repos.ProfileRepo
	people    repos.PersonRepo
}

func NewEnrichmentService(
	log *logger.Logger,
	ai AIClient,
	embedding EmbeddingService,
	sessions repos.SessionRepo,
	messages repos.MessageRepo,
	profiles repos.ProfileRepo,
	people repos.PersonRepo,
) *EnrichmentService {
	return &EnrichmentService{
		log:       log.With("service", "EnrichmentService"),
		ai:        ai,
		embedding: embedding,
		sessions:  sessions,
		messages:  messages,
		profiles:  profiles,
		people:    people,
	}
}

func (s *EnrichmentService) Type() string { return types.JobTypeSessionEnrichment }

func (s *EnrichmentService) Run(jc *jobs.Context) error {
	sessionID, ok := jc.PayloadUUID("session_id")
	if !ok {
		err := fmt.Errorf("payload missing session_id")
		jc.Fail(err)
		return err
	}
	ctx := jc.Ctx
	log := s.log.With("session_id", sessionID)

	sess, err := s.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		jc.Fail(err)
		return err
	}
	if sess == nil {
		err := fmt.Errorf("session %s not found", sessionID)
		jc.Fail(err)
		return err
	}

	msgs, err := s.messages.ListBySessionOrdered(ctx, nil, sessionID)
	if err != nil {
		jc.Fail(err)
		return err
	}
	if len(msgs) == 0 {
		log.Info("Session has no messages, nothing to enrich")
		jc.Succeed(map[string]any{"skipped": "empty session"})
		return nil
	}
	transcript := buildTranscript(msgs)

	profile, err := s.profiles.GetByID(ctx, nil, sess.UserID)
	if err != nil {
		log.Warn("Profile load failed, proceeding with defaults", "error", err)
	}
	model := modelFor(profile)

	stepErrs := map[string]string{}
	runStep := func(name string, fn func() error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Enrichment step panic", "step", name, "panic", r)
				stepErrs[name] = fmt.Sprintf("panic: %v", r)
			}
		}()
		if err := fn(); err != nil {
			log.Warn("Enrichment step failed", "step", name, "error", err)
			stepErrs[name] = err.Error()
		}
		jc.Heartbeat()
	}

	var summary, patterns string
	runStep("summary", func() error {
		var err error
		summary, err = s.enrichSummary(jc, model.Name, sess, transcript)
		return err
	})
	runStep("patterns", func() error {
		var err error
		patterns, err = s.enrichPatterns(jc, model.Name, sess, transcript)
		return err
	})
	runStep("dynamic_profile", func() error {
		return s.enrichDynamicProfile(jc, model.Name, profile, summary, patterns)
	})
	runStep("main_pattern", func() error {
		return s.enrichMainPattern(jc, model.Name, profile, summary, patterns)
	})
	runStep("people", func() error {
		return s.enrichPeople(jc, model.Name, sess, transcript)
	})

	result := map[string]any{
		"summary_stored":  summary != "",
		"patterns_stored": patterns != "",
	}
	if len(stepErrs) > 0 {
		result["step_errors"] = stepErrs
	}
	jc.Succeed(result)
	log.Info("Session enrichment finished", "failed_steps", len(stepErrs))
	return nil
}

// enrichSummary stores the session narrative, or clears it when the model
// reports there was not enough to summarize. The cleared state is written
// explicitly so a retry after a previously stored value converges.
func (s *EnrichmentService) enrichSummary(jc *jobs.Context, model string, sess *types.Session, transcript string) (string, error) {
	prompt := fillPrompt(summaryPrompt, map[string]string{"chat_history": transcript})
	out, err := s.ai.Chat(jc.Ctx, model, []PromptMessage{{Role: "user", Content: prompt}}, ProcessingMaxTokens)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)

	updates := map[string]interface{}{"summary": nil, "summary_embedding": nil}
	stored := ""
	if out != "" && out != SentinelInsufficientSummary {
		stored = out
		updates["summary"] = out
		if vec := s.embedding.Embed(jc.Ctx, out); len(vec) > 0 {
			updates["summary_embedding"] = pgvector.NewVector(vec)
		}
	}
	if err := s.sessions.UpdateFields(jc.Ctx, nil, sess.ID, updates); err != nil {
		return "", err
	}
	return stored, nil
}

func (s *EnrichmentService) enrichPatterns(jc *jobs.Context, model string, sess *types.Session, transcript string) (string, error) {
	prompt := fillPrompt(patternsPrompt, map[string]string{"chat_history": transcript})
	out, err := s.ai.Chat(jc.Ctx, model, []PromptMessage{{Role: "user", Content: prompt}}, ProcessingMaxTokens)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)

	updates := map[string]interface{}{"patterns": nil, "patterns_embedding": nil}
	stored := ""
	if out != "" && out != SentinelNoPatterns {
		stored = out
		updates["patterns"] = out
		if vec := s.embedding.Embed(jc.Ctx, out); len(vec) > 0 {
			updates["patterns_embedding"] = pgvector.NewVector(vec)
		}
	}
	if err := s.sessions.UpdateFields(jc.Ctx, nil, sess.ID, updates); err != nil {
		return "", err
	}
	return stored, nil
}

// enrichDynamicProfile updates the rolling profile narrative. The sentinel
// means "no change", which leaves the existing value untouched rather than
// clearing it.
func (s *EnrichmentService) enrichDynamicProfile(jc *jobs.Context, model string, profile *types.Profile, summary, patterns string) error {
	if profile == nil {
		return nil
	}
	if summary == "" && patterns == "" {
		return nil
	}
	prompt := fillPrompt(dynamicProfilePrompt, map[string]string{
		"existing_dynamic_profile": strOrNone(profile.DynamicProfile),
		"existing_main_pattern":    strOrNone(profile.MainPattern),
		"new_session_summary":      orNone(summary),
		"new_session_patterns":     orNone(patterns),
	})
	out, err := s.ai.Chat(jc.Ctx, model, []PromptMessage{{Role: "user", Content: prompt}}, ProcessingMaxTokens)
	if err != nil {
		return err
	}
	out = strings.TrimSpace(out)
	if out == "" || out == SentinelNoProfileUpdate {
		return nil
	}
	if err := s.profiles.UpdateFields(jc.Ctx, nil, profile.ID, map[string]interface{}{"dynamic_profile": out}); err != nil {
		return err
	}
	profile.DynamicProfile = &out
	return nil
}

func (s *EnrichmentService) enrichMainPattern(jc *jobs.Context, model string, profile *types.Profile, summary, patterns string) error {
	if profile == nil {
		return nil
	}
	if summary == "" && patterns == "" {
		return nil
	}
	prompt := fillPrompt(mainPatternPrompt, map[string]string{
		"current_dynamic_profile": strOrNone(profile.DynamicProfile),
		"existing_main_pattern":   strOrNone(profile.MainPattern),
		"new_session_summary":     orNone(summary),
		"new_session_patterns":    orNone(patterns),
	})
	out, err := s.ai.Chat(jc.Ctx, model, []PromptMessage{{Role: "user", Content: prompt}}, ProcessingMaxTokens)
	if err != nil {
		return err
	}
	out = strings.TrimSpace(out)
	if out == "" || out == SentinelPatternInconclusive {
		return nil
	}
	if err := s.profiles.UpdateFields(jc.Ctx, nil, profile.ID, map[string]interface{}{"main_pattern": out}); err != nil {
		return err
	}
	profile.MainPattern = &out
	return nil
}

type extractedPerson struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// enrichPeople upserts every person the model extracts. The output contract
// is a bare JSON array; anything else is treated as an empty extraction, not
// an error, because a chatty model reply is expected noise here.
func (s *EnrichmentService) enrichPeople(jc *jobs.Context, model string, sess *types.Session, transcript string) error {
	prompt := fillPrompt(peopleExtractionPrompt, map[string]string{"chat_history": transcript})
	out, err := s.ai.Chat(jc.Ctx, model, []PromptMessage{{Role: "user", Content: prompt}}, ProcessingMaxTokens)
	if err != nil {
		return err
	}

	extracted := parseExtractedPeople(out)
	for _, p := range extracted {
		person := &types.Person{
			UserID:        sess.UserID,
			Name:          p.Name,
			NameLowercase: normalizePersonName(p.Name),
			Description:   p.Description,
		}
		if person.NameLowercase == "" {
			continue
		}
		if vec := s.embedding.Embed(jc.Ctx, p.Name); len(vec) > 0 {
			v := pgvector.NewVector(vec)
			person.NameEmbedding = &v
		}
		if err := s.people.Upsert(jc.Ctx, nil, person); err != nil {
			s.log.Warn("Person upsert failed", "session_id", sess.ID, "name", p.Name, "error", err)
		}
	}
	return nil
}

// parseExtractedPeople enforces the strict output schema: a valid JSON array
// of {name, description} objects with non-blank names. Any deviation yields
// an empty result.
func parseExtractedPeople(raw string) []extractedPerson {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "[") {
		return nil
	}
	var people []extractedPerson
	if err := json.Unmarshal([]byte(raw), &people); err != nil {
		return nil
	}
	out := make([]extractedPerson, 0, len(people))
	for _, p := range people {
		p.Name = strings.TrimSpace(p.Name)
		p.Description = strings.TrimSpace(p.Description)
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// normalizePersonName lowercases a display name into the dedup key for
// person upserts. Punctuation is kept: "O'Brien" and "OBrien" are different
// people.
func normalizePersonName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func buildTranscript(msgs []*types.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		if m.SenderRole == types.SenderRoleAI {
			b.WriteString("AI: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.ContentText)
	}
	return b.String()
}

func strOrNone(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "None"
	}
	return *v
}

func orNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "None"
	}
	return v
}
