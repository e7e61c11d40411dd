package dealgraph

import (
	"context"
	"log/slog"

	"github.com/dealgraph/dealgraph/pkg/checkpoint"
	"github.com/dealgraph/dealgraph/pkg/contradiction"
	"github.com/dealgraph/dealgraph/pkg/crossencoder"
	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/embedder"
	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/resolution"
	"github.com/dealgraph/dealgraph/pkg/search"
	"github.com/dealgraph/dealgraph/pkg/truth"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// DealGraph is the top-level interface of the intelligence layer. It is what
// the conversational agent and the UI consume.
type DealGraph interface {
	// Ingest processes one episode of content: assigns channel-derived
	// confidence, extracts findings and entities, and links provenance.
	// Re-ingesting identical content for the same tenant is a no-op.
	Ingest(ctx context.Context, episode types.Episode) (*IngestResult, error)

	// Retrieve answers a query with ranked, cited results. Superseded
	// findings are never returned.
	Retrieve(ctx context.Context, query, tenantID string, kCandidates, kResults int) ([]*types.RankedResult, error)

	// RunContradictionSweep compares the tenant's current findings and
	// records contradictions above the confidence threshold.
	RunContradictionSweep(ctx context.Context, tenantID string) (*contradiction.SweepResult, error)

	// MergeEntities is the manual resolution override.
	MergeEntities(ctx context.Context, sourceID, targetID, tenantID string) (*types.Edge, error)

	// SplitEntities undoes a duplicate link, keeping the audit trail.
	SplitEntities(ctx context.Context, duplicateEdgeID, tenantID string) error

	// ListDuplicates returns live duplicate links above a confidence floor.
	ListDuplicates(ctx context.Context, tenantID string, minConfidence float64) ([]*types.Edge, error)

	// Supersede marks the old finding invalid in favor of the new one.
	Supersede(ctx context.Context, oldID, newID, tenantID, reason string) error

	// CurrentTruth returns the single current finding for a topic.
	CurrentTruth(ctx context.Context, tenantID, topic string) (*types.Node, error)

	// FindingHistory returns current and superseded findings for a topic.
	FindingHistory(ctx context.Context, tenantID, topic string) ([]*types.Node, error)

	// ResolveContradiction applies an operator decision as a supersession.
	ResolveContradiction(ctx context.Context, contradictionID, acceptedID, tenantID, note string) error

	// AnnotateContradiction records a note without changing validity.
	AnnotateContradiction(ctx context.Context, contradictionID, tenantID string, status types.ContradictionStatus, note string) error

	// ListContradictions returns contradiction records, optionally by status.
	ListContradictions(ctx context.Context, tenantID string, status types.ContradictionStatus) ([]*types.Contradiction, error)

	// GetEpisodes returns recent episodes for a tenant.
	GetEpisodes(ctx context.Context, tenantID string, limit int) ([]*types.Node, error)

	// GetStats reports graph counts for operational visibility.
	GetStats(ctx context.Context, tenantID string) (*driver.GraphStats, error)

	// CreateIndices creates database indices and constraints.
	CreateIndices(ctx context.Context) error

	// Close releases all clients.
	Close(ctx context.Context) error
}

// Client implements DealGraph by wiring the component packages over shared,
// injected collaborators. Construct one per process and share it.
type Client struct {
	driver    driver.GraphDriver
	nlp       nlp.Client
	embedder  embedder.Client
	extractor nlp.Extractor
	resolver  *resolution.Resolver
	detector  *contradiction.Detector
	truth     *truth.Store
	pipeline  *search.Pipeline
	logger    *slog.Logger
}

// Options configures optional collaborators of the client.
type Options struct {
	// Reranker for retrieval. Nil disables the rerank stage.
	Reranker crossencoder.Client
	// Checkpoints enables abortable, resumable contradiction sweeps.
	Checkpoints *checkpoint.Manager
	// SweepConfig tunes the contradiction detector.
	SweepConfig contradiction.Config
	// SearchConfig tunes the retrieval pipeline.
	SearchConfig search.Config
	// Extractor overrides the default model-backed extractor, for tests.
	Extractor nlp.Extractor
	// Comparer overrides the default model-backed comparer, for tests.
	Comparer nlp.Comparer
	// Logger for all components. Nil uses slog.Default.
	Logger *slog.Logger
}

// NewClient creates a DealGraph client from the injected collaborators.
// There is no hidden global state: every external client is constructed by
// the caller and passed in once.
func NewClient(d driver.GraphDriver, nlpClient nlp.Client, embedderClient embedder.Client, opts *Options) (*Client, error) {
	if d == nil {
		return nil, &types.ValidationError{Message: "graph driver is required"}
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	extractor := opts.Extractor
	if extractor == nil && nlpClient != nil {
		extractor = nlp.NewLLMExtractor(nlpClient, logger)
	}
	comparer := opts.Comparer
	if comparer == nil && nlpClient != nil {
		comparer = nlp.NewLLMComparer(nlpClient, logger)
	}

	sweepConfig := opts.SweepConfig
	if sweepConfig == (contradiction.Config{}) {
		sweepConfig = contradiction.DefaultConfig()
	}
	searchConfig := opts.SearchConfig
	if searchConfig == (search.Config{}) {
		searchConfig = search.DefaultConfig()
	}

	return &Client{
		driver:    d,
		nlp:       nlpClient,
		embedder:  embedderClient,
		extractor: extractor,
		resolver:  resolution.NewResolver(d, comparer, logger),
		detector:  contradiction.NewDetector(d, comparer, opts.Checkpoints, sweepConfig, logger),
		truth:     truth.NewStore(d, logger),
		pipeline:  search.NewPipeline(d, embedderClient, opts.Reranker, searchConfig, logger),
		logger:    logger,
	}, nil
}

// GetDriver returns the underlying graph driver.
func (c *Client) GetDriver() driver.GraphDriver { return c.driver }

// Close releases the model, embedding, and graph store clients.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if c.nlp != nil {
		if err := c.nlp.Close(); err != nil {
			firstErr = err
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.driver.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
