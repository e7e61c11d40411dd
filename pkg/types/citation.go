package types

// CitationSourceType classifies a citation's channel for callers.
type CitationSourceType string

const (
	CitationDocument CitationSourceType = "document"
	CitationQA       CitationSourceType = "qa"
	CitationChat     CitationSourceType = "chat"
)

// Citation is the structured provenance record returned to callers. Callers
// never see raw graph edges.
type Citation struct {
	SourceType CitationSourceType `json:"source_type"`
	ItemID     string             `json:"document_or_item_id"`
	Title      string             `json:"title,omitempty"`
	Page       int                `json:"page,omitempty"`
	Sheet      string             `json:"sheet,omitempty"`
	Cell       string             `json:"cell,omitempty"`
	Excerpt    string             `json:"excerpt,omitempty"`
	Confidence float64            `json:"confidence"`
}

// CitationSourceForChannel maps an ingestion channel onto the citation source
// type exposed to callers.
func CitationSourceForChannel(c SourceChannel) CitationSourceType {
	switch c {
	case ChannelQAResponse:
		return CitationQA
	case ChannelAnalystChat, ChannelMeetingNote:
		return CitationChat
	default:
		return CitationDocument
	}
}

// RankedResult is one retrieval hit: the backing finding, its relevance score,
// the citation, and names of related entities touched by graph edges.
type RankedResult struct {
	Finding         *Node    `json:"finding"`
	Score           float64  `json:"score"`
	Citation        Citation `json:"citation"`
	RelatedEntities []string `json:"related_entities,omitempty"`
}
