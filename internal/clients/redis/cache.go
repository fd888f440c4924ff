package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rationalmind/rationalmind-backend/internal/logger"
	"github.com/rationalmind/rationalmind-backend/internal/types"
	"github.com/rationalmind/rationalmind-backend/internal/utils"
)

// KnowledgeCache fronts the externally curated knowledge_entry table. The
// rows change rarely and are read on every chat turn, so a short TTL cache
// keeps the hot path off Postgres. Every failure degrades to a miss.
type KnowledgeCache interface {
	GetEntry(ctx context.Context, rationality int) (*types.KnowledgeEntry, bool)
	SetEntry(ctx context.Context, rationality int, entry *types.KnowledgeEntry)
	Close() error
}

type knowledgeCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewKnowledgeCache(log *logger.Logger) (KnowledgeCache, error) {
	serviceLog := log.With("service", "KnowledgeCache")

	addr := strings.TrimSpace(utils.GetEnv("REDIS_ADDR", "", log))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttlSec := utils.GetEnvAsInt("KNOWLEDGE_CACHE_TTL_SECONDS", 300, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &knowledgeCache{
		log: serviceLog,
		rdb: rdb,
		ttl: time.Duration(ttlSec) * time.Second,
	}, nil
}

func cacheKey(rationality int) string {
	return fmt.Sprintf("knowledge_entry:%d", rationality)
}

func (c *knowledgeCache) GetEntry(ctx context.Context, rationality int) (*types.KnowledgeEntry, bool) {
	raw, err := c.rdb.Get(ctx, cacheKey(rationality)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn("Knowledge cache read failed", "rationality", rationality, "error", err)
		}
		return nil, false
	}
	var entry types.KnowledgeEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Warn("Knowledge cache entry corrupt, ignoring", "rationality", rationality, "error", err)
		return nil, false
	}
	return &entry, true
}

func (c *knowledgeCache) SetEntry(ctx context.Context, rationality int, entry *types.KnowledgeEntry) {
	if entry == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(rationality), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Knowledge cache write failed", "rationality", rationality, "error", err)
	}
}

func (c *knowledgeCache) Close() error {
	return c.rdb.Close()
}
