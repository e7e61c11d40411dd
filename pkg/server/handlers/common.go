package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dealgraph/dealgraph/pkg/server/dto"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// writeError maps domain errors onto HTTP status codes and writes the
// standard error body.
func writeError(c *gin.Context, err error) {
	var validationErr *types.ValidationError
	var policyErr *types.PolicyViolationError
	var upstreamErr *types.UpstreamError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: validationErr.Message})
	case types.IsNotFound(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.As(err, &policyErr):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "policy_violation", Message: policyErr.Message})
	case errors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "upstream_failure", Message: upstreamErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error", Message: err.Error()})
	}
}

// badRequest writes a 400 with a request-shape validation message.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
}

func findingToDTO(node *types.Node) dto.FindingDTO {
	return dto.FindingDTO{
		UUID:          node.Uuid,
		Content:       node.Content,
		Domain:        string(node.Domain),
		Status:        string(node.Status),
		SourceChannel: string(node.SourceChannel),
		Confidence:    node.Confidence,
		ValidAt:       node.ValidAt,
		InvalidAt:     node.InvalidAt,
		CreatedAt:     node.CreatedAt,
	}
}

func rankedResultToDTO(r *types.RankedResult) dto.RetrievalResultDTO {
	return dto.RetrievalResultDTO{
		Finding: findingToDTO(r.Finding),
		Score:   r.Score,
		Citation: dto.CitationDTO{
			SourceType: string(r.Citation.SourceType),
			ItemID:     r.Citation.ItemID,
			Title:      r.Citation.Title,
			Page:       r.Citation.Page,
			Sheet:      r.Citation.Sheet,
			Cell:       r.Citation.Cell,
			Excerpt:    r.Citation.Excerpt,
			Confidence: r.Citation.Confidence,
		},
		RelatedEntities: r.RelatedEntities,
	}
}

func contradictionToDTO(record *types.Contradiction) dto.ContradictionDTO {
	return dto.ContradictionDTO{
		UUID:         record.Uuid,
		FindingA:     record.FindingA,
		FindingB:     record.FindingB,
		Confidence:   record.Confidence,
		Reason:       record.Reason,
		Status:       string(record.Status),
		DetectedAt:   record.DetectedAt,
		ResolvedAt:   record.ResolvedAt,
		ResolvedNote: record.ResolvedNote,
	}
}

func duplicateToDTO(edge *types.Edge) dto.DuplicateDTO {
	d := dto.DuplicateDTO{
		EdgeUUID:  edge.Uuid,
		SourceID:  edge.SourceNodeID,
		TargetID:  edge.TargetNodeID,
		CreatedAt: edge.CreatedAt,
	}
	if method, ok := edge.Attributes["method"].(string); ok {
		d.Method = method
	}
	if confidence, ok := edge.Attributes["confidence"].(float64); ok {
		d.Confidence = confidence
	}
	return d
}
