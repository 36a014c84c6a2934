package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEmbedder memoizes embedding calls keyed by (model, task type,
// content hash). Re-indexing an unchanged document set then costs no
// provider traffic.
type CachedEmbedder struct {
	runner *Runner
	cache  *expirable.LRU[string, []float32]
}

func NewCachedEmbedder(runner *Runner, size int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		runner: runner,
		cache:  expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := e.cacheKey(text, taskType)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}
	emb, err := e.runner.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, emb)
	return emb, nil
}

func (e *CachedEmbedder) cacheKey(text, taskType string) string {
	hash := sha256.Sum256([]byte(text))
	return e.runner.EmbedModelName() + ":" + taskType + ":" + hex.EncodeToString(hash[:])
}
