// Package search implements the hybrid retrieval and reranking pipeline.
//
// A query fans out to three candidate generators in parallel: vector
// similarity over finding embeddings, lexical fulltext match, and graph
// traversal from lexically matched seeds. The three ranked lists fuse with
// reciprocal rank fusion, the fused short list goes to a cross-encoder under
// a hard timeout, and superseded findings are filtered out of whatever
// survives. Rerank failure or timeout degrades to the fused order; it never
// fails the query.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/dealgraph/dealgraph/pkg/crossencoder"
	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/embedder"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// DefaultRankConstant is the k in the 1/(rank+k) RRF term.
const DefaultRankConstant = 60

// Config tunes the retrieval pipeline.
type Config struct {
	KCandidates    int           `json:"k_candidates" mapstructure:"k_candidates"`
	KResults       int           `json:"k_results" mapstructure:"k_results"`
	GraphDepth     int           `json:"graph_depth" mapstructure:"graph_depth"`
	RerankTimeout  time.Duration `json:"rerank_timeout" mapstructure:"rerank_timeout"`
	LatencyWarning time.Duration `json:"latency_warning" mapstructure:"latency_warning"`
}

// DefaultConfig returns the standard pipeline tuning.
func DefaultConfig() Config {
	return Config{
		KCandidates:    50,
		KResults:       10,
		GraphDepth:     2,
		RerankTimeout:  3 * time.Second,
		LatencyWarning: 3 * time.Second,
	}
}

// Pipeline executes retrieval queries. It is read-only over the graph and
// safe for concurrent use.
type Pipeline struct {
	driver   driver.GraphDriver
	embedder embedder.Client
	reranker crossencoder.Client
	config   Config
	logger   *slog.Logger
}

// NewPipeline creates a retrieval pipeline.
func NewPipeline(d driver.GraphDriver, emb embedder.Client, reranker crossencoder.Client, config Config, logger *slog.Logger) *Pipeline {
	if config.KCandidates <= 0 {
		config.KCandidates = 50
	}
	if config.KResults <= 0 {
		config.KResults = 10
	}
	if config.GraphDepth <= 0 {
		config.GraphDepth = 2
	}
	if config.RerankTimeout <= 0 {
		config.RerankTimeout = 3 * time.Second
	}
	if config.LatencyWarning <= 0 {
		config.LatencyWarning = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		driver:   d,
		embedder: emb,
		reranker: reranker,
		config:   config,
		logger:   logger,
	}
}

// Retrieve answers a query for a tenant. Zero candidates is an empty result
// set, not an error. Results never include a superseded finding.
func (p *Pipeline) Retrieve(ctx context.Context, query, tenantID string, kCandidates, kResults int) ([]*types.RankedResult, error) {
	if query == "" {
		return nil, &types.ValidationError{Message: "query is required"}
	}
	if tenantID == "" {
		return nil, &types.ValidationError{Message: "tenant ID is required"}
	}
	if kCandidates <= 0 {
		kCandidates = p.config.KCandidates
	}
	if kResults <= 0 {
		kResults = p.config.KResults
	}

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if elapsed > p.config.LatencyWarning {
			p.logger.Warn("retrieval exceeded latency target",
				"tenant_id", tenantID, "elapsed", elapsed, "target", p.config.LatencyWarning)
		}
	}()

	candidates, fusedOrder, err := p.fetchCandidates(ctx, query, tenantID, kCandidates)
	if err != nil {
		return nil, err
	}
	if len(fusedOrder) == 0 {
		return []*types.RankedResult{}, nil
	}

	scored := p.rerank(ctx, query, candidates, fusedOrder)

	// Superseded findings are filtered unconditionally, after reranking.
	results := make([]*types.RankedResult, 0, kResults)
	for _, sc := range scored {
		finding := candidates[sc.uuid]
		if finding == nil || finding.InvalidAt != nil {
			continue
		}
		result, err := p.buildResult(ctx, finding, sc.score)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
		if len(results) >= kResults {
			break
		}
	}
	return results, nil
}

type scoredUUID struct {
	uuid  string
	score float64
}

// fetchCandidates runs the three candidate generators concurrently and fuses
// their ranked lists with RRF. It returns the finding nodes keyed by UUID and
// the fused order.
func (p *Pipeline) fetchCandidates(ctx context.Context, query, tenantID string, k int) (map[string]*types.Node, []scoredUUID, error) {
	type fetchOutcome struct {
		nodes []*types.Node
		err   error
	}

	vectorCh := make(chan fetchOutcome, 1)
	textCh := make(chan fetchOutcome, 1)
	graphCh := make(chan fetchOutcome, 1)

	go func() {
		embedding, err := p.embedder.EmbedSingle(ctx, query)
		if err != nil {
			vectorCh <- fetchOutcome{err: err}
			return
		}
		nodes, err := p.driver.SearchNodesByEmbedding(ctx, embedding, tenantID, k)
		vectorCh <- fetchOutcome{nodes: nodes, err: err}
	}()

	go func() {
		nodes, err := p.driver.SearchNodesByText(ctx, query, tenantID, k)
		textCh <- fetchOutcome{nodes: nodes, err: err}
	}()

	go func() {
		seeds, err := p.driver.SearchNodesByText(ctx, query, tenantID, 5)
		if err != nil {
			graphCh <- fetchOutcome{err: err}
			return
		}
		if len(seeds) == 0 {
			graphCh <- fetchOutcome{}
			return
		}
		seedUUIDs := make([]string, 0, len(seeds))
		for _, s := range seeds {
			seedUUIDs = append(seedUUIDs, s.Uuid)
		}
		nodes, err := p.driver.GetNeighbors(ctx, seedUUIDs, tenantID, p.config.GraphDepth)
		graphCh <- fetchOutcome{nodes: nodes, err: err}
	}()

	vector := <-vectorCh
	text := <-textCh
	graph := <-graphCh

	// A failed generator degrades the blend rather than failing the query,
	// unless every generator failed.
	outcomes := []fetchOutcome{vector, text, graph}
	failures := 0
	for _, o := range outcomes {
		if o.err != nil {
			failures++
			p.logger.Warn("candidate generator failed", "error", o.err)
		}
	}
	if failures == len(outcomes) {
		return nil, nil, vector.err
	}

	candidates := make(map[string]*types.Node)
	lists := make([][]string, 0, 3)
	for _, o := range outcomes {
		var list []string
		for _, n := range o.nodes {
			if n.Type != types.FindingNodeType {
				continue
			}
			if _, seen := candidates[n.Uuid]; !seen {
				candidates[n.Uuid] = n
			}
			list = append(list, n.Uuid)
		}
		if len(list) > 0 {
			lists = append(lists, list)
		}
	}

	fused := rrf(lists, DefaultRankConstant)
	if len(fused) > k {
		fused = fused[:k]
	}
	return candidates, fused, nil
}

// rrf fuses ranked UUID lists with reciprocal rank fusion, preserving a
// deterministic order on score ties.
func rrf(lists [][]string, rankConstant int) []scoredUUID {
	if rankConstant <= 0 {
		rankConstant = DefaultRankConstant
	}
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, uuid := range list {
			scores[uuid] += 1.0 / float64(rank+rankConstant)
		}
	}

	fused := make([]scoredUUID, 0, len(scores))
	for uuid, score := range scores {
		fused = append(fused, scoredUUID{uuid: uuid, score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].uuid < fused[j].uuid
	})
	return fused
}

// rerank runs the cross-encoder over the fused candidates under the rerank
// timeout. Any failure falls back to the fused order.
func (p *Pipeline) rerank(ctx context.Context, query string, candidates map[string]*types.Node, fused []scoredUUID) []scoredUUID {
	if p.reranker == nil || len(fused) == 0 {
		return fused
	}

	passages := make([]string, 0, len(fused))
	byPassage := make(map[string]string, len(fused))
	for _, sc := range fused {
		content := candidates[sc.uuid].Content
		passages = append(passages, content)
		if _, dup := byPassage[content]; !dup {
			byPassage[content] = sc.uuid
		}
	}

	rerankCtx, cancel := context.WithTimeout(ctx, p.config.RerankTimeout)
	defer cancel()

	ranked, err := p.reranker.Rank(rerankCtx, query, passages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("rerank timed out, returning fused order", "timeout", p.config.RerankTimeout)
		} else {
			p.logger.Warn("rerank failed, returning fused order", "error", err)
		}
		return fused
	}

	out := make([]scoredUUID, 0, len(fused))
	seen := make(map[string]bool, len(fused))
	for _, r := range ranked {
		uuid, ok := byPassage[r.Passage]
		if !ok || seen[uuid] {
			continue
		}
		seen[uuid] = true
		out = append(out, scoredUUID{uuid: uuid, score: r.Score})
	}
	// Anything the reranker dropped keeps its fused position at the tail.
	for _, sc := range fused {
		if !seen[sc.uuid] {
			out = append(out, sc)
		}
	}
	return out
}

// buildResult assembles the caller-facing record: finding, citation from the
// EXTRACTED_FROM provenance, and related entity names from touched edges.
func (p *Pipeline) buildResult(ctx context.Context, finding *types.Node, score float64) (*types.RankedResult, error) {
	result := &types.RankedResult{
		Finding: finding,
		Score:   score,
		Citation: types.Citation{
			SourceType: types.CitationSourceForChannel(finding.SourceChannel),
			Excerpt:    finding.Content,
			Confidence: finding.Confidence,
		},
	}

	edges, err := p.driver.GetEdgesForNode(ctx, finding.Uuid, finding.TenantID)
	if err != nil {
		return nil, err
	}

	entitySeen := make(map[string]bool)
	for _, edge := range edges {
		switch edge.Type {
		case types.EdgeExtractedFrom:
			if edge.SourceNodeID != finding.Uuid {
				continue
			}
			episode, err := p.driver.GetNode(ctx, edge.TargetNodeID, finding.TenantID)
			if err != nil {
				if types.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			fillCitation(&result.Citation, episode)
		case types.EdgeRelatesTo, types.EdgeMentions:
			otherID := edge.TargetNodeID
			if otherID == finding.Uuid {
				otherID = edge.SourceNodeID
			}
			other, err := p.driver.GetNode(ctx, otherID, finding.TenantID)
			if err != nil {
				if types.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			if other.Type == types.EntityNodeType && !entitySeen[other.Name] {
				entitySeen[other.Name] = true
				result.RelatedEntities = append(result.RelatedEntities, other.Name)
			}
		}
	}
	sort.Strings(result.RelatedEntities)
	return result, nil
}

// fillCitation copies episode provenance attributes into the citation.
func fillCitation(c *types.Citation, episode *types.Node) {
	attrs := episode.Attributes
	if attrs == nil {
		return
	}
	if v, ok := attrs["source_id"].(string); ok {
		c.ItemID = v
	}
	if v, ok := attrs["title"].(string); ok {
		c.Title = v
	}
	switch v := attrs["page"].(type) {
	case int:
		c.Page = v
	case int64:
		c.Page = int(v)
	case float64:
		c.Page = int(v)
	}
	if v, ok := attrs["sheet"].(string); ok {
		c.Sheet = v
	}
	if v, ok := attrs["cell"].(string); ok {
		c.Cell = v
	}
}
