package nlp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// cannedClient replays a fixed response for any request.
type cannedClient struct {
	response *types.Response
	err      error
	calls    int
}

func (c *cannedClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	c.calls++
	return c.response, c.err
}

func (c *cannedClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	c.calls++
	return c.response, c.err
}

func (c *cannedClient) Close() error { return nil }

func TestComparePairsDecodesVerdicts(t *testing.T) {
	client := &cannedClient{response: &types.Response{Content: `{
		"results": [
			{"pair_id": 0, "contradicts": true, "confidence": 0.92, "reason": "figures differ"},
			{"pair_id": 1, "contradicts": false, "confidence": 0.2, "reason": ""}
		]
	}`}}
	comparer := NewLLMComparer(client, nil)

	outcomes, err := comparer.ComparePairs(context.Background(), []FindingPair{
		{ID: 0, A: "Revenue was $4.8M", B: "Revenue was $5.2M"},
		{ID: 1, A: "HQ is in Austin", B: "CFO joined in 2023"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Contradicts)
	assert.Equal(t, 0.92, outcomes[0].Confidence)
	assert.False(t, outcomes[1].Contradicts)
}

func TestComparePairsEmptyInput(t *testing.T) {
	client := &cannedClient{}
	comparer := NewLLMComparer(client, nil)

	outcomes, err := comparer.ComparePairs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Zero(t, client.calls, "no pairs means no model call")
}

func TestShouldMergeDecodesVerdict(t *testing.T) {
	client := &cannedClient{response: &types.Response{Content: `{"merge": true, "confidence": 0.81, "reason": "same company"}`}}
	comparer := NewLLMComparer(client, nil)

	outcome, err := comparer.ShouldMerge(context.Background(), "ABC Corp", "ABC Corporation", "lease documents")
	require.NoError(t, err)
	assert.True(t, outcome.Merge)
	assert.Equal(t, 0.81, outcome.Confidence)
}

func TestComparerSurfacesUpstreamError(t *testing.T) {
	client := &cannedClient{err: &types.UpstreamError{Service: "language model", Err: errors.New("rate limited")}}
	comparer := NewLLMComparer(client, nil)

	_, err := comparer.ShouldMerge(context.Background(), "a", "b", "")
	require.Error(t, err)
	var upstreamErr *types.UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)
}
