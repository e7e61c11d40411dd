package nlp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// ExtractedEntity is one entity mention found in ingested content.
type ExtractedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Role string `json:"role,omitempty"`
}

// ExtractedFinding is one atomic fact lifted from ingested content.
type ExtractedFinding struct {
	Content        string            `json:"content"`
	Domain         string            `json:"domain"`
	FindingType    string            `json:"finding_type,omitempty"`
	DateReferenced string            `json:"date_referenced,omitempty"`
	Entities       []ExtractedEntity `json:"entities,omitempty"`
}

// Extraction is the structured result of processing one content chunk.
type Extraction struct {
	Findings []ExtractedFinding `json:"findings"`
	Entities []ExtractedEntity  `json:"entities,omitempty"`
}

// Extractor lifts findings and entity mentions out of raw content.
type Extractor interface {
	Extract(ctx context.Context, content string) (*Extraction, error)
}

const extractionSystemPrompt = `You extract atomic facts from due diligence material.
Break the content into individual findings, one checkable fact each.
For every finding report:
- content: the fact restated as one self-contained sentence
- domain: one of financial, operational, market, legal, technical
- finding_type: short label such as metric, event, assessment
- date_referenced: the reporting period the fact describes (for example "2025-Q2"), empty if none is stated
- entities: companies, people, and financial metrics the fact mentions, each with name and type (Company, Person, FinancialMetric, Risk)
Report only facts stated in the content. Do not infer or embellish.`

// LLMExtractor implements Extractor with a language model client.
type LLMExtractor struct {
	client Client
	logger *slog.Logger
}

// NewLLMExtractor creates a model-backed extractor.
func NewLLMExtractor(client Client, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{client: client, logger: logger}
}

// Extract submits the content and decodes the structured findings.
func (e *LLMExtractor) Extract(ctx context.Context, content string) (*Extraction, error) {
	schema := Extraction{
		Findings: []ExtractedFinding{{
			Content:        "the fact as one sentence",
			Domain:         "financial",
			FindingType:    "metric",
			DateReferenced: "2025-Q2",
			Entities:       []ExtractedEntity{{Name: "Acme Corp", Type: "Company"}},
		}},
	}

	messages := []types.Message{
		NewSystemMessage(extractionSystemPrompt),
		NewUserMessage(content),
	}
	resp, err := e.client.ChatWithStructuredOutput(ctx, messages, schema)
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	extraction, err := DecodeStructured[Extraction](resp)
	if err != nil {
		return nil, fmt.Errorf("decoding extraction: %w", err)
	}

	// Novel domains degrade to operational rather than failing ingestion.
	for i, f := range extraction.Findings {
		if !validDomain(f.Domain) {
			e.logger.Debug("unknown finding domain, defaulting", "domain", f.Domain)
			extraction.Findings[i].Domain = string(types.DomainOperational)
		}
	}
	return &extraction, nil
}

func validDomain(s string) bool {
	for _, d := range types.Domains() {
		if s == string(d) {
			return true
		}
	}
	return false
}
