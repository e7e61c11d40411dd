package dealgraph

import (
	"context"

	"github.com/dealgraph/dealgraph/pkg/contradiction"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// Narrow views of the DealGraph interface. Consumers that only ingest or
// only query should depend on these instead of the full client.

// Ingestor accepts episodes.
type Ingestor interface {
	Ingest(ctx context.Context, episode types.Episode) (*IngestResult, error)
}

// Retriever answers queries.
type Retriever interface {
	Retrieve(ctx context.Context, query, tenantID string, kCandidates, kResults int) ([]*types.RankedResult, error)
	CurrentTruth(ctx context.Context, tenantID, topic string) (*types.Node, error)
	FindingHistory(ctx context.Context, tenantID, topic string) ([]*types.Node, error)
}

// Curator exposes the operator-facing maintenance surface.
type Curator interface {
	RunContradictionSweep(ctx context.Context, tenantID string) (*contradiction.SweepResult, error)
	MergeEntities(ctx context.Context, sourceID, targetID, tenantID string) (*types.Edge, error)
	SplitEntities(ctx context.Context, duplicateEdgeID, tenantID string) error
	ListDuplicates(ctx context.Context, tenantID string, minConfidence float64) ([]*types.Edge, error)
	ResolveContradiction(ctx context.Context, contradictionID, acceptedID, tenantID, note string) error
	AnnotateContradiction(ctx context.Context, contradictionID, tenantID string, status types.ContradictionStatus, note string) error
	ListContradictions(ctx context.Context, tenantID string, status types.ContradictionStatus) ([]*types.Contradiction, error)
}

var (
	_ DealGraph = (*Client)(nil)
	_ Ingestor  = (*Client)(nil)
	_ Retriever = (*Client)(nil)
	_ Curator   = (*Client)(nil)
)
