package dealgraph

import (
	"context"

	"github.com/dealgraph/dealgraph/pkg/contradiction"
	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// RunContradictionSweep runs the asynchronous contradiction detector over
// the tenant's current findings. The sweep is resumable per domain group.
func (c *Client) RunContradictionSweep(ctx context.Context, tenantID string) (*contradiction.SweepResult, error) {
	return c.detector.Sweep(ctx, tenantID)
}

// MergeEntities manually links source as a duplicate of target, leaving a
// permanent audit edge. Protected metrics are rejected.
func (c *Client) MergeEntities(ctx context.Context, sourceID, targetID, tenantID string) (*types.Edge, error) {
	return c.resolver.Merge(ctx, sourceID, targetID, tenantID)
}

// SplitEntities undoes a duplicate link while preserving the audit edge.
func (c *Client) SplitEntities(ctx context.Context, duplicateEdgeID, tenantID string) error {
	return c.resolver.Split(ctx, duplicateEdgeID, tenantID)
}

// ListDuplicates returns the tenant's live duplicate links at or above the
// confidence floor.
func (c *Client) ListDuplicates(ctx context.Context, tenantID string, minConfidence float64) ([]*types.Edge, error) {
	return c.resolver.ListDuplicates(ctx, tenantID, minConfidence)
}

// Supersede marks the old finding invalid in favor of the new one, keeping
// the old finding retrievable through history queries.
func (c *Client) Supersede(ctx context.Context, oldID, newID, tenantID, reason string) error {
	return c.truth.Supersede(ctx, oldID, newID, tenantID, reason)
}

// ResolveContradiction applies an operator decision: the accepted finding
// supersedes the other, which is rejected.
func (c *Client) ResolveContradiction(ctx context.Context, contradictionID, acceptedID, tenantID, note string) error {
	return c.truth.ResolveContradiction(ctx, contradictionID, acceptedID, tenantID, note)
}

// AnnotateContradiction moves a contradiction to noted or investigating
// with an operator note, leaving both findings' validity untouched.
func (c *Client) AnnotateContradiction(ctx context.Context, contradictionID, tenantID string, status types.ContradictionStatus, note string) error {
	return c.truth.AnnotateContradiction(ctx, contradictionID, tenantID, status, note)
}

// ListContradictions returns contradiction records, optionally filtered by
// status. An empty status returns all records.
func (c *Client) ListContradictions(ctx context.Context, tenantID string, status types.ContradictionStatus) ([]*types.Contradiction, error) {
	return c.driver.ListContradictions(ctx, tenantID, status)
}

// GetEpisodes returns the tenant's most recent episodes.
func (c *Client) GetEpisodes(ctx context.Context, tenantID string, limit int) ([]*types.Node, error) {
	return c.driver.GetEpisodes(ctx, tenantID, limit)
}

// GetStats reports node and edge counts for the tenant.
func (c *Client) GetStats(ctx context.Context, tenantID string) (*driver.GraphStats, error) {
	return c.driver.GetStats(ctx, tenantID)
}

// CreateIndices creates constraints, fulltext, and vector indices on the
// backing store. Safe to call repeatedly.
func (c *Client) CreateIndices(ctx context.Context) error {
	return c.driver.CreateIndices(ctx)
}
