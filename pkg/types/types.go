package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Validation errors
var (
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrEmptyTenantID = errors.New("tenant_id cannot be empty")
	ErrEmptyUUID     = errors.New("uuid cannot be empty")
	ErrEmptyContent  = errors.New("content cannot be empty")
	ErrInvalidLimit  = errors.New("limit must be positive")
)

// NodeType represents the kind of a node in the graph.
type NodeType string

const (
	// EntityNodeType represents entities extracted from content.
	EntityNodeType NodeType = "entity"
	// FindingNodeType represents fact-bearing findings with temporal validity.
	FindingNodeType NodeType = "finding"
	// EpisodeNodeType represents ingested units of content.
	EpisodeNodeType NodeType = "episode"
)

// EntityType names the real-world category of an entity node. The base set is
// closed, but novel types discovered at extraction time are carried verbatim
// in Node.EntityType and validated lazily.
type EntityType string

const (
	EntityTypeCompany         EntityType = "Company"
	EntityTypePerson          EntityType = "Person"
	EntityTypeFinancialMetric EntityType = "FinancialMetric"
	EntityTypeFinding         EntityType = "Finding"
	EntityTypeRisk            EntityType = "Risk"
	EntityTypeEpisode         EntityType = "Episode"
)

// CompanyRole constrains the role attribute of Company entities.
type CompanyRole string

const (
	RoleTarget     CompanyRole = "target"
	RoleAcquirer   CompanyRole = "acquirer"
	RoleCompetitor CompanyRole = "competitor"
	RoleCustomer   CompanyRole = "customer"
	RoleSupplier   CompanyRole = "supplier"
	RoleInvestor   CompanyRole = "investor"
)

// SourceChannel identifies where an ingested fact came from. The channel alone
// determines base confidence.
type SourceChannel string

const (
	ChannelDocument    SourceChannel = "document"
	ChannelQAResponse  SourceChannel = "qa_response"
	ChannelAnalystChat SourceChannel = "analyst_chat"
	ChannelMeetingNote SourceChannel = "meeting_note"
)

// ChannelConfidence returns the base confidence assigned to facts from the
// given channel. Client-confirmed answers outrank analyst assertions, which
// outrank document extractions. Unknown channels get the document baseline.
func ChannelConfidence(c SourceChannel) float64 {
	switch c {
	case ChannelQAResponse:
		return 0.95
	case ChannelAnalystChat:
		return 0.90
	case ChannelMeetingNote:
		return 0.88
	case ChannelDocument:
		return 0.85
	default:
		return 0.85
	}
}

// ValidChannel reports whether c is a known source channel.
func ValidChannel(c SourceChannel) bool {
	switch c {
	case ChannelDocument, ChannelQAResponse, ChannelAnalystChat, ChannelMeetingNote:
		return true
	}
	return false
}

// Domain groups findings for contradiction comparison. Facts are only compared
// within the same domain.
type Domain string

const (
	DomainFinancial   Domain = "financial"
	DomainOperational Domain = "operational"
	DomainMarket      Domain = "market"
	DomainLegal       Domain = "legal"
	DomainTechnical   Domain = "technical"
)

// Domains lists all finding domains in sweep order.
func Domains() []Domain {
	return []Domain{DomainFinancial, DomainOperational, DomainMarket, DomainLegal, DomainTechnical}
}

// FindingStatus tracks the lifecycle of a finding under contradiction review.
type FindingStatus string

const (
	FindingStatusActive    FindingStatus = "active"
	FindingStatusValidated FindingStatus = "validated"
	FindingStatusRejected  FindingStatus = "rejected"
)

// Node represents a node in the knowledge graph. Entities, findings, and
// episodes share the struct; type-specific fields are zero for other kinds.
type Node struct {
	Uuid      string    `json:"uuid" mapstructure:"uuid"`
	Name      string    `json:"name" mapstructure:"name"`
	Type      NodeType  `json:"type" mapstructure:"type"`
	TenantID  string    `json:"tenant_id" mapstructure:"tenant_id"`
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`

	// Entity-specific fields
	EntityType EntityType  `json:"entity_type,omitempty" mapstructure:"entity_type"`
	Role       CompanyRole `json:"role,omitempty" mapstructure:"role"`
	Aliases    []string    `json:"aliases,omitempty" mapstructure:"aliases"`
	Summary    string      `json:"summary,omitempty" mapstructure:"summary"`

	// Finding-specific fields
	Content        string        `json:"content,omitempty" mapstructure:"content"`
	Confidence     float64       `json:"confidence,omitempty" mapstructure:"confidence"`
	SourceChannel  SourceChannel `json:"source_channel,omitempty" mapstructure:"source_channel"`
	FindingType    string        `json:"finding_type,omitempty" mapstructure:"finding_type"`
	Domain         Domain        `json:"domain,omitempty" mapstructure:"domain"`
	Status         FindingStatus `json:"status,omitempty" mapstructure:"status"`
	DateReferenced string        `json:"date_referenced,omitempty" mapstructure:"date_referenced"`
	ChunkID        string        `json:"chunk_id,omitempty" mapstructure:"chunk_id"`
	ValidAt        time.Time     `json:"valid_at,omitempty" mapstructure:"valid_at"`
	InvalidAt      *time.Time    `json:"invalid_at,omitempty" mapstructure:"invalid_at"`

	// Episode-specific fields
	ContentHash string `json:"content_hash,omitempty" mapstructure:"content_hash"`

	// Common fields
	Embedding     []float32      `json:"embedding,omitempty" mapstructure:"embedding"`
	NameEmbedding []float32      `json:"name_embedding,omitempty" mapstructure:"name_embedding"`
	Attributes    map[string]any `json:"attributes,omitempty" mapstructure:"attributes"`
}

// Validate checks if the Node has all required fields set.
func (n *Node) Validate() error {
	if n.Name == "" && n.Content == "" {
		return ErrEmptyName
	}
	if n.TenantID == "" {
		return ErrEmptyTenantID
	}
	return nil
}

// ValidateForCreate checks if the Node has all required fields for creation.
func (n *Node) ValidateForCreate() error {
	if n.Uuid == "" {
		return ErrEmptyUUID
	}
	return n.Validate()
}

// IsCurrent reports whether the node is still valid for current-truth queries.
// A finding with a non-null invalid_at is logically dead but stays in storage.
func (n *Node) IsCurrent() bool {
	return n.InvalidAt == nil
}

// Episode represents one ingested unit of content plus its provenance.
type Episode struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	TenantID   string         `json:"tenant_id"`
	Channel    SourceChannel  `json:"channel"`
	Provenance ProvenanceRef  `json:"provenance"`
	Reference  time.Time      `json:"reference"`
	CreatedAt  time.Time      `json:"created_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate checks if the Episode has all required fields set.
func (e *Episode) Validate() error {
	if strings.TrimSpace(e.Content) == "" {
		return ErrEmptyContent
	}
	if e.TenantID == "" {
		return ErrEmptyTenantID
	}
	return nil
}

// Hash returns the content hash that keys ingestion idempotency for a tenant.
func (e *Episode) Hash() string {
	sum := sha256.Sum256([]byte(e.TenantID + "\x00" + e.Content))
	return hex.EncodeToString(sum[:])
}

// ProvenanceRef points back at the originating content.
type ProvenanceRef struct {
	SourceID   string `json:"source_id"`
	Title      string `json:"title,omitempty"`
	Page       int    `json:"page,omitempty"`
	Sheet      string `json:"sheet,omitempty"`
	Cell       string `json:"cell,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
}

// ContradictionStatus tracks the resolution lifecycle of a contradiction.
type ContradictionStatus string

const (
	ContradictionUnresolved    ContradictionStatus = "unresolved"
	ContradictionResolved      ContradictionStatus = "resolved"
	ContradictionNoted         ContradictionStatus = "noted"
	ContradictionInvestigating ContradictionStatus = "investigating"
)

// Contradiction links two findings that a comparison model judged to conflict.
type Contradiction struct {
	Uuid         string              `json:"uuid"`
	TenantID     string              `json:"tenant_id"`
	FindingA     string              `json:"finding_a"`
	FindingB     string              `json:"finding_b"`
	Confidence   float64             `json:"confidence"`
	Reason       string              `json:"reason"`
	Status       ContradictionStatus `json:"status"`
	DetectedAt   time.Time           `json:"detected_at"`
	ResolvedAt   *time.Time          `json:"resolved_at,omitempty"`
	ResolvedNote string              `json:"resolved_note,omitempty"`
}

// PairKey returns a direction-independent key so that (A,B) and (B,A)
// deduplicate to the same contradiction.
func (c *Contradiction) PairKey() string {
	if c.FindingA < c.FindingB {
		return c.FindingA + "|" + c.FindingB
	}
	return c.FindingB + "|" + c.FindingA
}

// Message represents a chat message exchanged with a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role represents the role of a message participant.
type Role string

// Response represents a language model response.
type Response struct {
	Content      string      `json:"content"`
	Model        string      `json:"model,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

// TokenUsage tracks token consumption of a model call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
