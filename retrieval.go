package dealgraph

import (
	"context"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// Retrieve answers a query for a tenant through the hybrid pipeline:
// candidate fetch across vector, lexical, and graph channels, RRF fusion,
// cross-encoder rerank under a timeout, then the superseded-fact filter.
func (c *Client) Retrieve(ctx context.Context, query, tenantID string, kCandidates, kResults int) ([]*types.RankedResult, error) {
	return c.pipeline.Retrieve(ctx, query, tenantID, kCandidates, kResults)
}

// CurrentTruth returns the single current finding for a topic, ranked by
// validity, channel confidence, then ingestion order.
func (c *Client) CurrentTruth(ctx context.Context, tenantID, topic string) (*types.Node, error) {
	return c.truth.CurrentTruth(ctx, tenantID, topic)
}

// FindingHistory returns all findings on a topic, superseded ones included.
func (c *Client) FindingHistory(ctx context.Context, tenantID, topic string) ([]*types.Node, error) {
	return c.truth.FindingHistory(ctx, tenantID, topic)
}
