package dto

import (
	"errors"
	"time"
)

// Validation errors shared across request types.
var (
	ErrEmptyTenantID  = errors.New("tenant_id cannot be empty")
	ErrEmptyContent   = errors.New("content cannot be empty")
	ErrEmptyQuery     = errors.New("query cannot be empty")
	ErrTenantTooLong  = errors.New("tenant_id exceeds maximum length (256)")
	ErrContentTooLong = errors.New("content exceeds maximum length (1MB)")
	ErrQueryTooLong   = errors.New("query exceeds maximum length (4096)")
)

// Maximum field lengths to bound request sizes.
const (
	MaxTenantIDLength = 256
	MaxContentLength  = 1024 * 1024
	MaxQueryLength    = 4096
	MaxResultsCap     = 100
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CitationDTO is the provenance block attached to each retrieval result.
type CitationDTO struct {
	SourceType string  `json:"source_type"`
	ItemID     string  `json:"document_or_item_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	Page       int     `json:"page,omitempty"`
	Sheet      string  `json:"sheet,omitempty"`
	Cell       string  `json:"cell,omitempty"`
	Excerpt    string  `json:"excerpt,omitempty"`
	Confidence float64 `json:"confidence"`
}

// FindingDTO is a finding as returned by retrieval and truth endpoints.
type FindingDTO struct {
	UUID          string     `json:"uuid"`
	Content       string     `json:"content"`
	Domain        string     `json:"domain"`
	Status        string     `json:"status"`
	SourceChannel string     `json:"source_channel"`
	Confidence    float64    `json:"confidence"`
	ValidAt       time.Time  `json:"valid_at"`
	InvalidAt     *time.Time `json:"invalid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// RetrievalResultDTO is one ranked retrieval hit.
type RetrievalResultDTO struct {
	Finding         FindingDTO  `json:"finding"`
	Score           float64     `json:"score"`
	Citation        CitationDTO `json:"citation"`
	RelatedEntities []string    `json:"related_entities,omitempty"`
}

// ContradictionDTO is a recorded conflict between two findings.
type ContradictionDTO struct {
	UUID         string     `json:"uuid"`
	FindingA     string     `json:"finding_a"`
	FindingB     string     `json:"finding_b"`
	Confidence   float64    `json:"confidence"`
	Reason       string     `json:"reason"`
	Status       string     `json:"status"`
	DetectedAt   time.Time  `json:"detected_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedNote string     `json:"resolved_note,omitempty"`
}

// DuplicateDTO is one live entity duplicate link.
type DuplicateDTO struct {
	EdgeUUID   string    `json:"edge_uuid"`
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Method     string    `json:"method"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}
