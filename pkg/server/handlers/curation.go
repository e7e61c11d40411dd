package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dealgraph/dealgraph"
	"github.com/dealgraph/dealgraph/pkg/server/dto"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// CurationHandler handles contradiction sweeps, entity resolution overrides,
// and supersession.
type CurationHandler struct {
	graph dealgraph.DealGraph
}

// NewCurationHandler creates a new curation handler.
func NewCurationHandler(g dealgraph.DealGraph) *CurationHandler {
	return &CurationHandler{graph: g}
}

// RunSweep handles POST /api/v1/contradictions/sweep. The sweep runs
// synchronously; an aborted sweep resumes from its checkpoint on the next
// call.
func (h *CurationHandler) RunSweep(c *gin.Context) {
	var req dto.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.graph.RunContradictionSweep(c.Request.Context(), req.TenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListContradictions handles GET /api/v1/contradictions/:tenant_id?status=unresolved.
func (h *CurationHandler) ListContradictions(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		badRequest(c, dto.ErrEmptyTenantID)
		return
	}
	status := types.ContradictionStatus(c.Query("status"))

	records, err := h.graph.ListContradictions(c.Request.Context(), tenantID, status)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.ContradictionDTO, 0, len(records))
	for _, r := range records {
		out = append(out, contradictionToDTO(r))
	}
	c.JSON(http.StatusOK, gin.H{"contradictions": out, "total": len(out)})
}

// ResolveContradiction handles POST /api/v1/contradictions/resolve.
func (h *CurationHandler) ResolveContradiction(c *gin.Context) {
	var req dto.ResolveContradictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	err := h.graph.ResolveContradiction(c.Request.Context(), req.ContradictionID, req.AcceptedFindingID, req.TenantID, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

// AnnotateContradiction handles POST /api/v1/contradictions/annotate.
func (h *CurationHandler) AnnotateContradiction(c *gin.Context) {
	var req dto.AnnotateContradictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	err := h.graph.AnnotateContradiction(c.Request.Context(), req.ContradictionID, req.TenantID, types.ContradictionStatus(req.Status), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// MergeEntities handles POST /api/v1/entities/merge.
func (h *CurationHandler) MergeEntities(c *gin.Context) {
	var req dto.MergeEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	edge, err := h.graph.MergeEntities(c.Request.Context(), req.SourceID, req.TargetID, req.TenantID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, duplicateToDTO(edge))
}

// SplitEntities handles POST /api/v1/entities/split.
func (h *CurationHandler) SplitEntities(c *gin.Context) {
	var req dto.SplitEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.graph.SplitEntities(c.Request.Context(), req.DuplicateEdgeID, req.TenantID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"split": true})
}

// ListDuplicates handles GET /api/v1/entities/:tenant_id/duplicates?min_confidence=0.8.
func (h *CurationHandler) ListDuplicates(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		badRequest(c, dto.ErrEmptyTenantID)
		return
	}
	minConfidence := 0.0
	if raw := c.Query("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			badRequest(c, &types.ValidationError{Message: "min_confidence must be between 0 and 1"})
			return
		}
		minConfidence = v
	}

	edges, err := h.graph.ListDuplicates(c.Request.Context(), tenantID, minConfidence)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.DuplicateDTO, 0, len(edges))
	for _, e := range edges {
		out = append(out, duplicateToDTO(e))
	}
	c.JSON(http.StatusOK, gin.H{"duplicates": out, "total": len(out)})
}

// Supersede handles POST /api/v1/findings/supersede.
func (h *CurationHandler) Supersede(c *gin.Context) {
	var req dto.SupersedeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	err := h.graph.Supersede(c.Request.Context(), req.OldFindingID, req.NewFindingID, req.TenantID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"superseded": true})
}
