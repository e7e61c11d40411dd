package crossencoder

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
)

// LocalRerankerClient ranks passages by cosine similarity of term frequency
// vectors. No network access, deterministic results.
type LocalRerankerClient struct {
	config Config
}

// NewLocalRerankerClient creates a new local similarity reranker.
func NewLocalRerankerClient(config Config) *LocalRerankerClient {
	return &LocalRerankerClient{config: config}
}

// Rank orders the passages by term overlap with the query.
func (c *LocalRerankerClient) Rank(ctx context.Context, query string, passages []string) ([]RankedPassage, error) {
	if len(passages) == 0 {
		return []RankedPassage{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryVec := termFrequencies(query)
	ranked := make([]RankedPassage, 0, len(passages))
	for _, passage := range passages {
		ranked = append(ranked, RankedPassage{
			Passage: passage,
			Score:   cosine(queryVec, termFrequencies(passage)),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// Close cleans up any resources.
func (c *LocalRerankerClient) Close() error { return nil }

func termFrequencies(text string) map[string]float64 {
	freq := make(map[string]float64)
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		freq[token]++
	}
	return freq
}

func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for term, av := range a {
		normA += av * av
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	for _, bv := range b {
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
