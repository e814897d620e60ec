package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// cachedEmbedder memoizes embeddings per input text. Suggestion traffic
// repeats case titles often enough that a short-lived in-process cache saves
// a meaningful share of embedding calls.
type cachedEmbedder struct {
	inner EmbeddingProvider
	store *gocache.Cache
}

func cacheEmbedder(p EmbeddingProvider) EmbeddingProvider {
	return &cachedEmbedder{
		inner: p,
		store: gocache.New(30*time.Minute, 10*time.Minute),
	}
}

func (c *cachedEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	keys := make([]string, len(req.Inputs))
	out := make([][]float32, len(req.Inputs))
	missing := make([]int, 0, len(req.Inputs))
	for i, input := range req.Inputs {
		keys[i] = embedCacheKey(input, req.Dimension)
		if v, ok := c.store.Get(keys[i]); ok {
			out[i] = v.([]float32)
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, ProviderInfo{Name: "cache", Model: "embed-cache", Key: "local"}, nil
	}

	inputs := make([]string, len(missing))
	for j, i := range missing {
		inputs[j] = req.Inputs[i]
	}
	vectors, info, err := c.inner.Embed(ctx, EmbedRequest{Operation: req.Operation, Inputs: inputs, Dimension: req.Dimension})
	if err != nil {
		return nil, info, err
	}
	if len(vectors) != len(missing) {
		return nil, info, fmt.Errorf("embedding count mismatch: want %d got %d", len(missing), len(vectors))
	}
	for j, i := range missing {
		out[i] = vectors[j]
		c.store.Set(keys[i], vectors[j], gocache.DefaultExpiration)
	}
	return out, info, nil
}

func embedCacheKey(input string, dim int) string {
	h := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%s:%d", hex.EncodeToString(h[:]), dim)
}
