package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/types"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// wordTokenizer charges one token per whitespace-separated word, which keeps
// budget arithmetic in tests easy to verify by hand.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

type fakeAIClient struct {
	chatFn   func(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (string, error)
	streamFn func(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (io.ReadCloser, error)
	embedFn  func(ctx context.Context, input string) ([]float32, error)
}

func (f *fakeAIClient) Chat(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (string, error) {
	if f.chatFn == nil {
		return "", nil
	}
	return f.chatFn(ctx, model, messages, maxTokens)
}

func (f *fakeAIClient) OpenChatStream(ctx context.Context, model string, messages []PromptMessage, maxTokens int) (io.ReadCloser, error) {
	if f.streamFn == nil {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return f.streamFn(ctx, model, messages, maxTokens)
}

func (f *fakeAIClient) Embed(ctx context.Context, input string) ([]float32, error) {
	if f.embedFn == nil {
		return []float32{0.1, 0.2}, nil
	}
	return f.embedFn(ctx, input)
}

type fakeSessionRepo struct {
	byID           map[uuid.UUID]*types.Session
	summaryMatches []*types.Session
	patternMatches []*types.Session
	updates        []map[string]interface{}
}

func (f *fakeSessionRepo) Create(ctx context.Context, tx *gorm.DB, s *types.Session) (*types.Session, error) {
	return s, nil
}
func (f *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Session, error) {
	return f.byID[id], nil
}
func (f *fakeSessionRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Session, error) {
	return nil, nil
}
func (f *fakeSessionRepo) GetMaxNumByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakeSessionRepo) ListCompletedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Session, error) {
	return nil, nil
}
func (f *fakeSessionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	f.updates = append(f.updates, updates)
	return nil
}
func (f *fakeSessionRepo) MatchSummariesByEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Session, error) {
	return f.summaryMatches, nil
}
func (f *fakeSessionRepo) MatchPatternsByEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Session, error) {
	return f.patternMatches, nil
}

type fakePersonRepo struct {
	exact     []*types.Person
	vector    []*types.Person
	upserted  []*types.Person
	exactSeen [][]string
}

func (f *fakePersonRepo) Upsert(ctx context.Context, tx *gorm.DB, p *types.Person) error {
	f.upserted = append(f.upserted, p)
	return nil
}
func (f *fakePersonRepo) GetByLowercaseNames(ctx context.Context, tx *gorm.DB, userID uuid.UUID, names []string) ([]*types.Person, error) {
	f.exactSeen = append(f.exactSeen, names)
	return f.exact, nil
}
func (f *fakePersonRepo) MatchByNameEmbedding(ctx context.Context, tx *gorm.DB, userID uuid.UUID, query pgvector.Vector, limit int) ([]*types.Person, error) {
	return f.vector, nil
}

type fakeKnowledgeRepo struct {
	byRationality map[int]*types.KnowledgeEntry
	matches       []*types.KnowledgeEntry
}

func (f *fakeKnowledgeRepo) GetByRationality(ctx context.Context, tx *gorm.DB, rationality int) (*types.KnowledgeEntry, error) {
	return f.byRationality[rationality], nil
}
func (f *fakeKnowledgeRepo) MatchByEmbedding(ctx context.Context, tx *gorm.DB, rationality int, query pgvector.Vector, limit int) ([]*types.KnowledgeEntry, error) {
	return f.matches, nil
}

type fakeProfileRepo struct {
	profiles map[uuid.UUID]*types.Profile
	updates  []map[string]interface{}
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Profile, error) {
	return f.profiles[userID], nil
}
func (f *fakeProfileRepo) UpdateFields(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]interface{}) error {
	f.updates = append(f.updates, updates)
	return nil
}

type fakeMessageRepo struct {
	bySession map[uuid.UUID][]*types.Message
	created   []*types.Message
}

func (f *fakeMessageRepo) Create(ctx context.Context, tx *gorm.DB, m *types.Message) (*types.Message, error) {
	f.created = append(f.created, m)
	return m, nil
}
func (f *fakeMessageRepo) ListBySessionOrdered(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.Message, error) {
	return f.bySession[sessionID], nil
}

type fakeKnowledgeCache struct {
	entries map[int]*types.KnowledgeEntry
	hits    int
	sets    int
}

func (f *fakeKnowledgeCache) GetEntry(ctx context.Context, rationality int) (*types.KnowledgeEntry, bool) {
	e, ok := f.entries[rationality]
	if ok {
		f.hits++
	}
	return e, ok
}

func (f *fakeKnowledgeCache) SetEntry(ctx context.Context, rationality int, entry *types.KnowledgeEntry) {
	if f.entries == nil {
		f.entries = map[int]*types.KnowledgeEntry{}
	}
	f.entries[rationality] = entry
	f.sets++
}

func (f *fakeKnowledgeCache) Close() error { return nil }

type fakeJobRunRepo struct {
	updates []map[string]interface{}
}

func (f *fakeJobRunRepo) Create(ctx context.Context, tx *gorm.DB, job *types.JobRun) (*types.JobRun, error) {
	return job, nil
}
func (f *fakeJobRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	f.updates = append(f.updates, updates)
	return nil
}
func (f *fakeJobRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }
