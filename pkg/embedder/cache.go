package embedder

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoized embeddings.
const DefaultCacheSize = 4096

// CachedClient wraps a Client with a bounded LRU so repeated query texts do
// not pay for another provider round trip. The cache key is the raw text.
type CachedClient struct {
	inner Client
	cache *lru.Cache[string, []float32]
}

// NewCachedClient wraps inner with an LRU of the given size. A size of zero
// or less uses DefaultCacheSize.
func NewCachedClient(inner Client, size int) (*CachedClient, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedClient{inner: inner, cache: cache}, nil
}

// Embed returns cached embeddings where available and fetches the rest in a
// single batch from the underlying client.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if emb, ok := c.cache.Get(text); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		fetched, err := c.inner.Embed(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, emb := range fetched {
			c.cache.Add(missing[j], emb)
			out[missingIdx[j]] = emb
		}
	}
	return out, nil
}

// EmbedSingle returns the cached embedding for text, fetching on a miss.
func (c *CachedClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if emb, ok := c.cache.Get(text); ok {
		return emb, nil
	}
	emb, err := c.inner.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, emb)
	return emb, nil
}

// Dimensions returns the underlying client's dimensionality.
func (c *CachedClient) Dimensions() int { return c.inner.Dimensions() }

// Close closes the underlying client.
func (c *CachedClient) Close() error { return c.inner.Close() }
