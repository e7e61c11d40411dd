package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dealgraph/dealgraph"
	"github.com/dealgraph/dealgraph/pkg/server/dto"
)

// RetrieveHandler handles retrieval and truth queries.
type RetrieveHandler struct {
	graph dealgraph.DealGraph
}

// NewRetrieveHandler creates a new retrieve handler.
func NewRetrieveHandler(g dealgraph.DealGraph) *RetrieveHandler {
	return &RetrieveHandler{graph: g}
}

// Retrieve handles POST /api/v1/retrieve.
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	var req dto.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	results, err := h.graph.Retrieve(c.Request.Context(), req.Query, req.TenantID, req.KCandidates, req.KResults)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.RetrievalResultDTO, 0, len(results))
	for _, r := range results {
		out = append(out, rankedResultToDTO(r))
	}
	c.JSON(http.StatusOK, dto.RetrieveResponse{Results: out, Total: len(out)})
}

// CurrentTruth handles GET /api/v1/truth/:tenant_id?topic=revenue.
func (h *RetrieveHandler) CurrentTruth(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	topic := c.Query("topic")
	if tenantID == "" {
		badRequest(c, dto.ErrEmptyTenantID)
		return
	}
	if topic == "" {
		badRequest(c, dto.ErrEmptyQuery)
		return
	}

	finding, err := h.graph.CurrentTruth(c.Request.Context(), tenantID, topic)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, findingToDTO(finding))
}

// FindingHistory handles GET /api/v1/truth/:tenant_id/history?topic=revenue.
// The response includes superseded findings, newest first.
func (h *RetrieveHandler) FindingHistory(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	topic := c.Query("topic")
	if tenantID == "" {
		badRequest(c, dto.ErrEmptyTenantID)
		return
	}
	if topic == "" {
		badRequest(c, dto.ErrEmptyQuery)
		return
	}

	findings, err := h.graph.FindingHistory(c.Request.Context(), tenantID, topic)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.FindingDTO, 0, len(findings))
	for _, f := range findings {
		out = append(out, findingToDTO(f))
	}
	c.JSON(http.StatusOK, gin.H{"findings": out, "total": len(out)})
}

// Stats handles GET /api/v1/stats/:tenant_id.
func (h *RetrieveHandler) Stats(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		badRequest(c, dto.ErrEmptyTenantID)
		return
	}

	stats, err := h.graph.GetStats(c.Request.Context(), tenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// intQuery parses an integer query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
