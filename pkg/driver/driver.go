package driver

import (
	"context"
	"time"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// GraphProvider represents the type of graph database provider.
type GraphProvider string

const (
	GraphProviderNeo4j  GraphProvider = "neo4j"
	GraphProviderMemory GraphProvider = "memory"
)

// FindingFilter constrains finding queries.
type FindingFilter struct {
	Domain          types.Domain
	Status          types.FindingStatus
	CurrentOnly     bool
	ExcludeRejected bool
	Topic           string
	Limit           int
}

// GraphDriver defines the graph store contract. All operations are scoped to
// a tenant namespace; a driver must never return data across tenants.
type GraphDriver interface {
	// Node operations
	GetNode(ctx context.Context, uuid, tenantID string) (*types.Node, error)
	GetNodes(ctx context.Context, uuids []string, tenantID string) ([]*types.Node, error)
	UpsertNode(ctx context.Context, node *types.Node) error
	UpsertNodes(ctx context.Context, nodes []*types.Node) error
	DeleteNode(ctx context.Context, uuid, tenantID string) error

	// Edge operations. UpsertEdge enforces the edge-type allow-list against
	// the stored kinds of the endpoint nodes.
	GetEdge(ctx context.Context, uuid, tenantID string) (*types.Edge, error)
	UpsertEdge(ctx context.Context, edge *types.Edge) error
	DeleteEdge(ctx context.Context, uuid, tenantID string) error
	GetEdgesForNode(ctx context.Context, nodeUUID, tenantID string) ([]*types.Edge, error)
	GetEdgesByType(ctx context.Context, tenantID string, t types.EdgeType) ([]*types.Edge, error)
	GetEdgeBetween(ctx context.Context, t types.EdgeType, sourceUUID, targetUUID, tenantID string) (*types.Edge, error)

	// Finding and episode queries
	GetFindings(ctx context.Context, tenantID string, filter FindingFilter) ([]*types.Node, error)
	GetEpisodeByContentHash(ctx context.Context, tenantID, hash string) (*types.Node, error)
	GetEpisodes(ctx context.Context, tenantID string, limit int) ([]*types.Node, error)

	// Search operations
	SearchNodesByEmbedding(ctx context.Context, embedding []float32, tenantID string, limit int) ([]*types.Node, error)
	SearchNodesByText(ctx context.Context, query, tenantID string, limit int) ([]*types.Node, error)
	GetNeighbors(ctx context.Context, originUUIDs []string, tenantID string, maxDistance int) ([]*types.Node, error)

	// Contradiction records. The record store is the source of truth; the
	// CONTRADICTS edge is written best-effort afterwards.
	UpsertContradiction(ctx context.Context, c *types.Contradiction) error
	GetContradiction(ctx context.Context, uuid, tenantID string) (*types.Contradiction, error)
	ListContradictions(ctx context.Context, tenantID string, status types.ContradictionStatus) ([]*types.Contradiction, error)

	// Maintenance
	CreateIndices(ctx context.Context) error
	GetStats(ctx context.Context, tenantID string) (*GraphStats, error)
	Provider() GraphProvider
	Close(ctx context.Context) error
}

// GraphStats holds statistics about the graph.
type GraphStats struct {
	NodeCount     int64            `json:"node_count"`
	EdgeCount     int64            `json:"edge_count"`
	NodesByType   map[string]int64 `json:"nodes_by_type"`
	EdgesByType   map[string]int64 `json:"edges_by_type"`
	Contradicting int64            `json:"contradicting"`
	LastUpdated   time.Time        `json:"last_updated"`
}
