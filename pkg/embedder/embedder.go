// Package embedder provides text embedding clients for vector representations.
//
// The Client interface supports batch embedding; implementations handle
// provider batching limits internally. Wrap any client with NewCachedClient to
// memoize repeated query embeddings behind a bounded LRU.
package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// Client defines the interface for embedding operations.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the number of dimensions in the embeddings.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds configuration for embedding clients.
type Config struct {
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions"`
	BatchSize  int    `json:"batch_size"`
}

const (
	// DefaultModel is used when no embedding model is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions matches the default model's output size.
	DefaultDimensions = 1536
	// DefaultBatchSize bounds texts per request.
	DefaultBatchSize = 100
)

// OpenAIClient implements Client using the OpenAI embeddings API.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates a new OpenAI embedding client.
func NewOpenAIClient(apiKey string, config Config) *OpenAIClient {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Dimensions == 0 {
		config.Dimensions = DefaultDimensions
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Embed generates embeddings for the given texts in provider-sized batches.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = strings.ReplaceAll(t, "\n", " ")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(cleaned); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(cleaned) {
			end = len(cleaned)
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.config.Model),
			Input: cleaned[start:end],
		})
		if err != nil {
			return nil, &types.UpstreamError{Service: "embedding provider", Err: err}
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: requested %d, got %d", end-start, len(resp.Data))
		}
		for _, item := range resp.Data {
			out = append(out, item.Embedding)
		}
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (c *OpenAIClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// Dimensions returns the number of dimensions in the embeddings.
func (c *OpenAIClient) Dimensions() int { return c.config.Dimensions }

// Close cleans up any resources.
func (c *OpenAIClient) Close() error { return nil }
