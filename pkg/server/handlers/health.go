package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dealgraph/dealgraph"
)

// Build information, set at build time using ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// HealthHandler handles liveness and readiness probes.
type HealthHandler struct {
	graph dealgraph.DealGraph
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(g dealgraph.DealGraph) *HealthHandler {
	return &HealthHandler{graph: g}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "dealgraph",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// LivenessCheck handles GET /live.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   "dealgraph",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. The graph store is probed with a
// bounded stats call; a timeout marks the service not ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if h.graph != nil {
		start := time.Now()
		_, err := h.graph.GetStats(ctx, "readiness-probe")
		duration := time.Since(start)
		if err != nil && ctx.Err() != nil {
			checks["database"] = gin.H{"status": "unhealthy", "error": "graph store timeout", "duration": duration.String()}
			ready = false
		} else {
			checks["database"] = gin.H{"status": "healthy", "duration": duration.String()}
		}
	} else {
		checks["database"] = gin.H{"status": "unhealthy", "error": "graph client not initialized"}
		ready = false
	}

	checks["runtime"] = gin.H{
		"status":     "healthy",
		"goroutines": runtime.NumGoroutine(),
		"go_version": runtime.Version(),
	}

	response := gin.H{
		"status":    "ready",
		"service":   "dealgraph",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if !ready {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
