package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records which texts actually reach the backend.
type countingEmbedder struct {
	requests [][]string
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.requests = append(c.requests, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 0, 0}
	}
	return out, nil
}

func (c *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *countingEmbedder) Dimensions() int { return 3 }
func (c *countingEmbedder) Close() error    { return nil }

func TestCachedClientServesRepeatsFromCache(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedClient(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.EmbedSingle(ctx, "revenue Q2")
	require.NoError(t, err)
	second, err := cached.EmbedSingle(ctx, "revenue Q2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, inner.requests, 1, "second call must be a cache hit")
}

func TestCachedClientBatchesOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedClient(inner, 16)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cached.Embed(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)

	vecs, err := cached.Embed(ctx, []string{"alpha", "gamma", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Only gamma was new.
	require.Len(t, inner.requests, 2)
	assert.Equal(t, []string{"gamma"}, inner.requests[1])

	// Order and values follow the request, not the cache layout.
	assert.Equal(t, float32(5), vecs[0][0])
	assert.Equal(t, float32(5), vecs[1][0])
	assert.Equal(t, float32(4), vecs[2][0])
}

func TestCachedClientRejectsBadSize(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedClient(inner, 0)
	require.NoError(t, err, "zero size falls back to the default")
	require.NotNil(t, cached)
}
