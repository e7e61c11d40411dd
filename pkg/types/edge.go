package types

import (
	"time"
)

// EdgeType represents the type of a directed relationship between two nodes.
type EdgeType string

const (
	// EdgeSupersedes marks that the source finding replaces the target finding.
	EdgeSupersedes EdgeType = "SUPERSEDES"
	// EdgeContradicts links two findings judged to conflict.
	EdgeContradicts EdgeType = "CONTRADICTS"
	// EdgeSupports links a finding to another it reinforces.
	EdgeSupports EdgeType = "SUPPORTS"
	// EdgeExtractedFrom links a finding back to its originating episode.
	EdgeExtractedFrom EdgeType = "EXTRACTED_FROM"
	// EdgeIsDuplicateOf records an entity resolution decision with audit data.
	EdgeIsDuplicateOf EdgeType = "IS_DUPLICATE_OF"
	// EdgeMentions links an episode to entities referenced in it.
	EdgeMentions EdgeType = "MENTIONS"
	// EdgeRelatesTo is the generic entity-to-entity relationship.
	EdgeRelatesTo EdgeType = "RELATES_TO"
)

// ResolutionMethod distinguishes automatic from operator-driven merges.
type ResolutionMethod string

const (
	ResolutionAuto   ResolutionMethod = "auto"
	ResolutionManual ResolutionMethod = "manual"
)

// Edge represents a directed, typed relationship between two nodes.
type Edge struct {
	Uuid         string    `json:"uuid"`
	Type         EdgeType  `json:"type"`
	SourceNodeID string    `json:"source_node_uuid"`
	TargetNodeID string    `json:"target_node_uuid"`
	TenantID     string    `json:"tenant_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Fact carried by the edge, if any, plus its embedding for search.
	Fact          string    `json:"fact,omitempty"`
	FactEmbedding []float32 `json:"fact_embedding,omitempty"`

	// Temporal validity of the relationship.
	ValidAt   time.Time  `json:"valid_at,omitempty"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"`

	// Type-specific attributes:
	//   SUPERSEDES      reason, superseded_at
	//   CONTRADICTS     detected_at, confidence, resolved
	//   SUPPORTS        strength
	//   EXTRACTED_FROM  page, chunk_index
	//   IS_DUPLICATE_OF method, confidence, created_at
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Validate checks the edge's required fields.
func (e *Edge) Validate() error {
	if e.Uuid == "" {
		return ErrEmptyUUID
	}
	if e.TenantID == "" {
		return ErrEmptyTenantID
	}
	if e.SourceNodeID == "" || e.TargetNodeID == "" {
		return &ValidationError{Message: "edge requires source and target node uuids"}
	}
	return nil
}

// entityPair keys the edge allow-list on (source type, target type).
type entityPair struct {
	src NodeType
	dst NodeType
}

// edgeAllowList constrains which edge types may connect which node kinds.
// Writes with an edge type not listed for the pair are rejected.
var edgeAllowList = map[entityPair]map[EdgeType]bool{
	{FindingNodeType, FindingNodeType}: {
		EdgeSupersedes:  true,
		EdgeContradicts: true,
		EdgeSupports:    true,
	},
	{FindingNodeType, EpisodeNodeType}: {
		EdgeExtractedFrom: true,
	},
	{FindingNodeType, EntityNodeType}: {
		EdgeRelatesTo: true,
	},
	{EntityNodeType, EntityNodeType}: {
		EdgeIsDuplicateOf: true,
		EdgeRelatesTo:     true,
		EdgeSupports:      true,
	},
	{EpisodeNodeType, EntityNodeType}: {
		EdgeMentions: true,
	},
	{EpisodeNodeType, FindingNodeType}: {
		EdgeMentions: true,
	},
}

// EdgeAllowed reports whether edges of type t are permitted from a source node
// kind to a target node kind.
func EdgeAllowed(t EdgeType, src, dst NodeType) bool {
	allowed, ok := edgeAllowList[entityPair{src, dst}]
	if !ok {
		return false
	}
	return allowed[t]
}

// ValidateEdgeForPair enforces the allow-list at write time.
func ValidateEdgeForPair(t EdgeType, src, dst NodeType) error {
	if !EdgeAllowed(t, src, dst) {
		return &ValidationError{
			Message: "edge type " + string(t) + " not permitted between " + string(src) + " and " + string(dst),
		}
	}
	return nil
}

// NewEdge constructs an edge with timestamps set.
func NewEdge(uuid string, t EdgeType, sourceID, targetID, tenantID string) *Edge {
	now := time.Now().UTC()
	return &Edge{
		Uuid:         uuid,
		Type:         t,
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		TenantID:     tenantID,
		CreatedAt:    now,
		UpdatedAt:    now,
		ValidAt:      now,
		Attributes:   make(map[string]any),
	}
}
