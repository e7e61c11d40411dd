// Package server exposes the intelligence layer over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dealgraph/dealgraph"
	"github.com/dealgraph/dealgraph/pkg/config"
	"github.com/dealgraph/dealgraph/pkg/server/handlers"
)

// Server is the HTTP front of the intelligence layer.
type Server struct {
	config *config.Config
	router *gin.Engine
	graph  dealgraph.DealGraph
	logger *slog.Logger
	server *http.Server
}

// New creates a new server instance.
func New(cfg *config.Config, graph dealgraph.DealGraph, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		graph:  graph,
		logger: logger,
	}
}

// Setup sets up the server routes and middleware.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.graph)
	ingestHandler := handlers.NewIngestHandler(s.graph)
	retrieveHandler := handlers.NewRetrieveHandler(s.graph)
	curationHandler := handlers.NewCurationHandler(s.graph)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)

	v1 := s.router.Group("/api/v1")
	{
		// Ingestion
		v1.POST("/episodes", ingestHandler.IngestEpisode)
		v1.GET("/episodes/:tenant_id", ingestHandler.GetEpisodes)

		// Retrieval and truth
		v1.POST("/retrieve", retrieveHandler.Retrieve)
		v1.GET("/truth/:tenant_id", retrieveHandler.CurrentTruth)
		v1.GET("/truth/:tenant_id/history", retrieveHandler.FindingHistory)
		v1.GET("/stats/:tenant_id", retrieveHandler.Stats)

		// Contradictions
		contradictions := v1.Group("/contradictions")
		{
			contradictions.POST("/sweep", curationHandler.RunSweep)
			contradictions.POST("/resolve", curationHandler.ResolveContradiction)
			contradictions.POST("/annotate", curationHandler.AnnotateContradiction)
			contradictions.GET("/:tenant_id", curationHandler.ListContradictions)
		}

		// Entity resolution overrides
		entities := v1.Group("/entities")
		{
			entities.POST("/merge", curationHandler.MergeEntities)
			entities.POST("/split", curationHandler.SplitEntities)
			entities.GET("/:tenant_id/duplicates", curationHandler.ListDuplicates)
		}

		// Supersession
		v1.POST("/findings/supersede", curationHandler.Supersede)
	}
}

// Start starts the server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
