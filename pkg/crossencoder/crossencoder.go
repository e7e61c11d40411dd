/*
Package crossencoder ranks passages by relevance to a query.

Cross-encoders score query-passage pairs together, which gives better ranking
accuracy than comparing separately computed embeddings. They sit at the end of
a multi-stage retrieval pipeline: fast candidate generation first, then a
cross-encoder pass over the short list.

Two implementations are provided. OpenAIRerankerClient runs a boolean
relevance classifier per passage over the language model API with bounded
concurrency. LocalRerankerClient uses cosine similarity of term frequency
vectors and needs no network, which makes it the fallback and the test double.
*/
package crossencoder

import (
	"context"
	"fmt"
)

// Provider selects a reranker implementation.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderLocal  Provider = "local"
)

// RankedPassage is a passage with its relevance score.
type RankedPassage struct {
	Passage string  `json:"passage"`
	Score   float64 `json:"score"`
}

// Client defines the interface for cross-encoder reranking.
type Client interface {
	// Rank orders the passages by relevance to the query, highest score first.
	Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error)

	// Close cleans up any resources.
	Close() error
}

// Config holds configuration for reranker clients.
type Config struct {
	Model          string `json:"model,omitempty"`
	MaxConcurrency int    `json:"max_concurrency,omitempty"`
}

// DefaultConfig returns a default configuration for the given provider.
func DefaultConfig(provider Provider) Config {
	switch provider {
	case ProviderOpenAI:
		return Config{Model: "gpt-4o-mini", MaxConcurrency: 5}
	default:
		return Config{}
	}
}

// NewClient creates a reranker client based on the provider type.
func NewClient(provider Provider, config Config, nlpClient NLPClient) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		if nlpClient == nil {
			return nil, fmt.Errorf("language model client is required for openai reranker")
		}
		return NewOpenAIRerankerClient(nlpClient, config), nil
	case ProviderLocal:
		return NewLocalRerankerClient(config), nil
	default:
		return nil, fmt.Errorf("unsupported cross-encoder provider: %s", provider)
	}
}
