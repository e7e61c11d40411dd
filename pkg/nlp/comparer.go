package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// FindingPair is one candidate pair submitted for semantic comparison.
type FindingPair struct {
	ID int    `json:"id"`
	A  string `json:"a"`
	B  string `json:"b"`
}

// ComparisonOutcome is the structured verdict for one compared pair.
type ComparisonOutcome struct {
	PairID      int     `json:"pair_id"`
	Contradicts bool    `json:"contradicts"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// MergeOutcome is the structured verdict of an entity merge check.
type MergeOutcome struct {
	Merge      bool    `json:"merge"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Comparer performs semantic comparisons through a language model. All model
// nondeterminism is contained here; callers apply confidence thresholds to the
// structured outcomes.
type Comparer interface {
	// ComparePairs classifies each pair of statements as contradicting or not.
	ComparePairs(ctx context.Context, pairs []FindingPair) ([]ComparisonOutcome, error)

	// ShouldMerge decides whether two entity mentions refer to the same
	// real-world entity, given surrounding context.
	ShouldMerge(ctx context.Context, a, b, context_ string) (*MergeOutcome, error)
}

const comparisonSystemPrompt = `You are an analyst comparing factual statements extracted during due diligence.
For each numbered pair, decide whether the two statements logically contradict each other.
Statements contradict only when they cannot both be true about the same subject in the same period.
Differences of emphasis, granularity, or wording are not contradictions.`

const mergeSystemPrompt = `You decide whether two entity mentions refer to the same real-world entity.
Rules that always apply:
- Financial metric names (revenue, net revenue, gross margin, EBITDA margin, and similar) are distinct concepts: never merge two different metric names no matter how similar they look.
- Mentions of a person qualified with different roles (for example "CEO" versus "CFO") are different references: never merge them.
- Mentions tied to different reporting periods are never merged.`

// LLMComparer implements Comparer with a language model client.
type LLMComparer struct {
	client Client
	logger *slog.Logger
}

// NewLLMComparer creates a model-backed comparer.
func NewLLMComparer(client Client, logger *slog.Logger) *LLMComparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMComparer{client: client, logger: logger}
}

type comparisonEnvelope struct {
	Results []ComparisonOutcome `json:"results"`
}

// ComparePairs submits one batched request covering all pairs.
func (c *LLMComparer) ComparePairs(ctx context.Context, pairs []FindingPair) ([]ComparisonOutcome, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Compare the following statement pairs:\n")
	for _, p := range pairs {
		fmt.Fprintf(&sb, "\nPair %d:\nA: %s\nB: %s\n", p.ID, p.A, p.B)
	}

	schema := comparisonEnvelope{Results: []ComparisonOutcome{{
		PairID:      0,
		Contradicts: false,
		Confidence:  0.0,
		Reason:      "why",
	}}}

	resp, err := c.client.ChatWithStructuredOutput(ctx, []types.Message{
		NewSystemMessage(comparisonSystemPrompt),
		NewUserMessage(sb.String()),
	}, schema)
	if err != nil {
		return nil, fmt.Errorf("comparison model call failed: %w", err)
	}

	envelope, err := DecodeStructured[comparisonEnvelope](resp)
	if err != nil {
		return nil, err
	}
	return envelope.Results, nil
}

// ShouldMerge asks the model to classify two mentions as the same entity.
func (c *LLMComparer) ShouldMerge(ctx context.Context, a, b, context_ string) (*MergeOutcome, error) {
	prompt := fmt.Sprintf("Mention A: %s\nMention B: %s\n", a, b)
	if context_ != "" {
		prompt += "Context: " + context_ + "\n"
	}
	prompt += "Do these refer to the same real-world entity?"

	schema := MergeOutcome{Merge: false, Confidence: 0.0, Reason: "why"}

	resp, err := c.client.ChatWithStructuredOutput(ctx, []types.Message{
		NewSystemMessage(mergeSystemPrompt),
		NewUserMessage(prompt),
	}, schema)
	if err != nil {
		return nil, fmt.Errorf("merge check model call failed: %w", err)
	}

	outcome, err := DecodeStructured[MergeOutcome](resp)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}
