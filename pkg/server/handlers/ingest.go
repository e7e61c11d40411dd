package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealgraph/dealgraph"
	"github.com/dealgraph/dealgraph/pkg/server/dto"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// IngestHandler handles episode ingestion requests.
type IngestHandler struct {
	graph dealgraph.DealGraph
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(g dealgraph.DealGraph) *IngestHandler {
	return &IngestHandler{graph: g}
}

// IngestEpisode handles POST /api/v1/episodes. Ingestion runs synchronously
// so the caller gets the created finding and entity ids back; document
// pipelines that want async behavior queue on their side.
func (h *IngestHandler) IngestEpisode(c *gin.Context) {
	var req dto.IngestEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	episode := types.Episode{
		Content:  req.Content,
		TenantID: req.TenantID,
		Channel:  types.SourceChannel(req.Channel),
		Provenance: types.ProvenanceRef{
			SourceID:   req.SourceID,
			Title:      req.Title,
			Page:       req.Page,
			Sheet:      req.Sheet,
			Cell:       req.Cell,
			ChunkIndex: req.ChunkIndex,
		},
		Metadata: req.Metadata,
	}
	if req.Reference != nil {
		episode.Reference = *req.Reference
	} else {
		episode.Reference = time.Now().UTC()
	}

	result, err := h.graph.Ingest(c.Request.Context(), episode)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExists {
		status = http.StatusOK
	}
	c.JSON(status, dto.IngestEpisodeResponse{
		EpisodeID:     result.EpisodeID,
		FindingIDs:    result.FindingIDs,
		EntityIDs:     result.EntityIDs,
		MergedIDs:     result.MergedIDs,
		AlreadyExists: result.AlreadyExists,
	})
}

// GetEpisodes handles GET /api/v1/episodes/:tenant_id.
func (h *IngestHandler) GetEpisodes(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		badRequest(c, dto.ErrEmptyTenantID)
		return
	}
	limit := intQuery(c, "last_n", 10)
	if limit > 100 {
		limit = 100
	}

	episodes, err := h.graph.GetEpisodes(c.Request.Context(), tenantID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"episodes": episodes,
		"total":    len(episodes),
	})
}
