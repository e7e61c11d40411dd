package dto

import (
	"errors"
	"strings"
	"time"
)

// IngestEpisodeRequest submits one unit of content for extraction.
type IngestEpisodeRequest struct {
	TenantID   string         `json:"tenant_id" binding:"required"`
	Content    string         `json:"content" binding:"required"`
	Channel    string         `json:"channel" binding:"required"`
	SourceID   string         `json:"source_id,omitempty"`
	Title      string         `json:"title,omitempty"`
	Page       int            `json:"page,omitempty"`
	Sheet      string         `json:"sheet,omitempty"`
	Cell       string         `json:"cell,omitempty"`
	ChunkIndex int            `json:"chunk_index,omitempty"`
	Reference  *time.Time     `json:"reference,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate performs validation on IngestEpisodeRequest. Channel membership
// is checked downstream against the known channel set.
func (r *IngestEpisodeRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if len(r.TenantID) > MaxTenantIDLength {
		return ErrTenantTooLong
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if len(r.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if strings.TrimSpace(r.Channel) == "" {
		return errors.New("channel cannot be empty")
	}
	return nil
}

// IngestEpisodeResponse reports what ingestion created.
type IngestEpisodeResponse struct {
	EpisodeID     string   `json:"episode_id"`
	FindingIDs    []string `json:"finding_ids,omitempty"`
	EntityIDs     []string `json:"entity_ids,omitempty"`
	MergedIDs     []string `json:"merged_ids,omitempty"`
	AlreadyExists bool     `json:"already_exists"`
}

// RetrieveRequest is a hybrid retrieval query.
type RetrieveRequest struct {
	TenantID    string `json:"tenant_id" binding:"required"`
	Query       string `json:"query" binding:"required"`
	KCandidates int    `json:"k_candidates,omitempty"`
	KResults    int    `json:"k_results,omitempty"`
}

// Validate performs validation on RetrieveRequest.
func (r *RetrieveRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyQuery
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if r.KResults > MaxResultsCap {
		return errors.New("k_results exceeds maximum (100)")
	}
	return nil
}

// RetrieveResponse carries the ranked, cited results.
type RetrieveResponse struct {
	Results []RetrievalResultDTO `json:"results"`
	Total   int                  `json:"total"`
}

// SweepRequest starts a contradiction sweep for a tenant.
type SweepRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
}

// Validate performs validation on SweepRequest.
func (r *SweepRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	return nil
}

// MergeEntitiesRequest manually merges the source entity into the target.
type MergeEntitiesRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	SourceID string `json:"source_id" binding:"required"`
	TargetID string `json:"target_id" binding:"required"`
}

// Validate performs validation on MergeEntitiesRequest.
func (r *MergeEntitiesRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if r.SourceID == "" || r.TargetID == "" {
		return errors.New("source_id and target_id are required")
	}
	return nil
}

// SplitEntitiesRequest undoes a duplicate link by its edge id.
type SplitEntitiesRequest struct {
	TenantID        string `json:"tenant_id" binding:"required"`
	DuplicateEdgeID string `json:"duplicate_edge_id" binding:"required"`
}

// Validate performs validation on SplitEntitiesRequest.
func (r *SplitEntitiesRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if r.DuplicateEdgeID == "" {
		return errors.New("duplicate_edge_id is required")
	}
	return nil
}

// SupersedeRequest marks an old finding invalid in favor of a new one.
type SupersedeRequest struct {
	TenantID     string `json:"tenant_id" binding:"required"`
	OldFindingID string `json:"old_finding_id" binding:"required"`
	NewFindingID string `json:"new_finding_id" binding:"required"`
	Reason       string `json:"reason,omitempty"`
}

// Validate performs validation on SupersedeRequest.
func (r *SupersedeRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if r.OldFindingID == "" || r.NewFindingID == "" {
		return errors.New("old_finding_id and new_finding_id are required")
	}
	return nil
}

// ResolveContradictionRequest applies an operator decision.
type ResolveContradictionRequest struct {
	TenantID          string `json:"tenant_id" binding:"required"`
	ContradictionID   string `json:"contradiction_id" binding:"required"`
	AcceptedFindingID string `json:"accepted_finding_id" binding:"required"`
	Note              string `json:"note,omitempty"`
}

// Validate performs validation on ResolveContradictionRequest.
func (r *ResolveContradictionRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if r.ContradictionID == "" || r.AcceptedFindingID == "" {
		return errors.New("contradiction_id and accepted_finding_id are required")
	}
	return nil
}

// AnnotateContradictionRequest records an operator note on a contradiction
// without resolving it.
type AnnotateContradictionRequest struct {
	TenantID        string `json:"tenant_id" binding:"required"`
	ContradictionID string `json:"contradiction_id" binding:"required"`
	Status          string `json:"status" binding:"required"`
	Note            string `json:"note,omitempty"`
}

// Validate performs validation on AnnotateContradictionRequest.
func (r *AnnotateContradictionRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return ErrEmptyTenantID
	}
	if r.ContradictionID == "" {
		return errors.New("contradiction_id is required")
	}
	if r.Status != "noted" && r.Status != "investigating" {
		return errors.New("status must be noted or investigating")
	}
	return nil
}
