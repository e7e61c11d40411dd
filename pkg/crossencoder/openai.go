package crossencoder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// NLPClient is the subset of the language model client the reranker needs.
type NLPClient interface {
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)
	Close() error
}

// OpenAIRerankerClient scores each passage with a boolean relevance classifier
// prompt, run concurrently under a semaphore.
type OpenAIRerankerClient struct {
	client    NLPClient
	config    Config
	semaphore chan struct{}
}

// NewOpenAIRerankerClient creates a new API-backed reranker client.
func NewOpenAIRerankerClient(client NLPClient, config Config) *OpenAIRerankerClient {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	return &OpenAIRerankerClient{
		client:    client,
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
	}
}

// Rank ranks the given passages based on their relevance to the query.
func (c *OpenAIRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return []RankedPassage{}, nil
	}

	type passageResult struct {
		score float64
		err   error
	}

	results := make([]passageResult, len(passages))
	var wg sync.WaitGroup

	for i, passage := range passages {
		wg.Add(1)
		go func(idx int, p string) {
			defer wg.Done()

			select {
			case c.semaphore <- struct{}{}:
				defer func() { <-c.semaphore }()
			case <-ctx.Done():
				results[idx] = passageResult{err: ctx.Err()}
				return
			}

			score, err := c.scorePassage(ctx, query, p)
			results[idx] = passageResult{score: score, err: err}
		}(i, passage)
	}

	wg.Wait()

	ranked := make([]RankedPassage, 0, len(passages))
	for i, result := range results {
		if result.err != nil {
			return nil, fmt.Errorf("scoring passage %d: %w", i, result.err)
		}
		ranked = append(ranked, RankedPassage{Passage: passages[i], Score: result.score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func (c *OpenAIRerankerClient) scorePassage(ctx context.Context, query, passage string) (float64, error) {
	messages := []types.Message{
		nlp.NewSystemMessage("You are an expert tasked with determining whether the passage is relevant to the query."),
		nlp.NewUserMessage(fmt.Sprintf(`Respond with "True" if PASSAGE is relevant to QUERY and "False" otherwise.
<PASSAGE>
%s
</PASSAGE>
<QUERY>
%s
</QUERY>`, passage, query)),
	}

	response, err := c.client.Chat(ctx, messages)
	if err != nil {
		return 0, err
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return 0.5, nil
	}
	firstWord, _, _ := strings.Cut(content, " ")
	switch strings.ToLower(strings.Trim(firstWord, ".,!")) {
	case "true", "yes":
		return 0.8, nil
	case "false", "no":
		return 0.2, nil
	default:
		return 0.5, nil
	}
}

// Close cleans up any resources used by the client.
func (c *OpenAIRerankerClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
