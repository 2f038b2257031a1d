package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"docmind/internal/model"
)

// EmbeddingCache keeps computed vectors in redis so repeated texts (mostly
// queries) skip the embedding backend. Errors are logged and treated as misses.
// Entries are keyed by dimension as well as model, so resizing vectors never
// serves stale lengths.
type EmbeddingCache struct {
	client    *redisv9.Client
	ttl       time.Duration
	dimension int
}

func NewEmbeddingCache(client *redisv9.Client, ttl time.Duration, dimension int) *EmbeddingCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EmbeddingCache{client: client, ttl: ttl, dimension: dimension}
}

func (c *EmbeddingCache) Get(ctx context.Context, modelName, text string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.key(modelName, text)).Bytes()
	if err == redisv9.Nil {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Msg("redis get embedding failed")
		return nil, false
	}
	vec := model.DecodeVector(raw)
	if len(vec) == 0 || len(vec) != c.dimension {
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingCache) Set(ctx context.Context, modelName, text string, vec []float32) {
	if len(vec) == 0 || len(vec) != c.dimension {
		return
	}
	if err := c.client.Set(ctx, c.key(modelName, text), model.EncodeVector(vec), c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("redis set embedding failed")
	}
}

func (c *EmbeddingCache) key(modelName, text string) string {
	sum := blake2b.Sum256([]byte(modelName + "\x00" + text))
	return fmt.Sprintf("embedding:%s:%d:%s", modelName, c.dimension, hex.EncodeToString(sum[:]))
}
