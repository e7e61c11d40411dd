package driver

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// MemoryDriver is an in-memory GraphDriver used for tests and local runs.
// It applies the same tenant scoping and edge allow-list rules as the Neo4j
// driver.
type MemoryDriver struct {
	mu             sync.RWMutex
	nodes          map[string]*types.Node
	edges          map[string]*types.Edge
	contradictions map[string]*types.Contradiction
}

// NewMemoryDriver creates an empty in-memory graph store.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		nodes:          make(map[string]*types.Node),
		edges:          make(map[string]*types.Edge),
		contradictions: make(map[string]*types.Contradiction),
	}
}

func (d *MemoryDriver) Provider() GraphProvider { return GraphProviderMemory }

func (d *MemoryDriver) Close(ctx context.Context) error { return nil }

func (d *MemoryDriver) CreateIndices(ctx context.Context) error { return nil }

func (d *MemoryDriver) GetNode(ctx context.Context, uuid, tenantID string) (*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.nodes[uuid]
	if !ok || node.TenantID != tenantID {
		return nil, &types.NotFoundError{Kind: "node", ID: uuid}
	}
	cp := *node
	return &cp, nil
}

func (d *MemoryDriver) GetNodes(ctx context.Context, uuids []string, tenantID string) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*types.Node, 0, len(uuids))
	for _, id := range uuids {
		if node, ok := d.nodes[id]; ok && node.TenantID == tenantID {
			cp := *node
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (d *MemoryDriver) UpsertNode(ctx context.Context, node *types.Node) error {
	if err := node.ValidateForCreate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *node
	if existing, ok := d.nodes[node.Uuid]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	d.nodes[node.Uuid] = &cp
	return nil
}

func (d *MemoryDriver) UpsertNodes(ctx context.Context, nodes []*types.Node) error {
	for _, n := range nodes {
		if err := d.UpsertNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (d *MemoryDriver) DeleteNode(ctx context.Context, uuid, tenantID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	node, ok := d.nodes[uuid]
	if !ok || node.TenantID != tenantID {
		return &types.NotFoundError{Kind: "node", ID: uuid}
	}
	delete(d.nodes, uuid)
	for id, e := range d.edges {
		if e.SourceNodeID == uuid || e.TargetNodeID == uuid {
			delete(d.edges, id)
		}
	}
	return nil
}

func (d *MemoryDriver) GetEdge(ctx context.Context, uuid, tenantID string) (*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	edge, ok := d.edges[uuid]
	if !ok || edge.TenantID != tenantID {
		return nil, &types.NotFoundError{Kind: "edge", ID: uuid}
	}
	cp := *edge
	return &cp, nil
}

func (d *MemoryDriver) UpsertEdge(ctx context.Context, edge *types.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	src, ok := d.nodes[edge.SourceNodeID]
	if !ok || src.TenantID != edge.TenantID {
		return &types.NotFoundError{Kind: "node", ID: edge.SourceNodeID}
	}
	dst, ok := d.nodes[edge.TargetNodeID]
	if !ok || dst.TenantID != edge.TenantID {
		return &types.NotFoundError{Kind: "node", ID: edge.TargetNodeID}
	}
	if err := types.ValidateEdgeForPair(edge.Type, src.Type, dst.Type); err != nil {
		return err
	}

	cp := *edge
	if existing, ok := d.edges[edge.Uuid]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = time.Now().UTC()
	d.edges[edge.Uuid] = &cp
	return nil
}

func (d *MemoryDriver) DeleteEdge(ctx context.Context, uuid, tenantID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	edge, ok := d.edges[uuid]
	if !ok || edge.TenantID != tenantID {
		return &types.NotFoundError{Kind: "edge", ID: uuid}
	}
	delete(d.edges, uuid)
	return nil
}

func (d *MemoryDriver) GetEdgesForNode(ctx context.Context, nodeUUID, tenantID string) ([]*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*types.Edge
	for _, e := range d.edges {
		if e.TenantID != tenantID {
			continue
		}
		if e.SourceNodeID == nodeUUID || e.TargetNodeID == nodeUUID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortEdges(out)
	return out, nil
}

func (d *MemoryDriver) GetEdgesByType(ctx context.Context, tenantID string, t types.EdgeType) ([]*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*types.Edge
	for _, e := range d.edges {
		if e.TenantID == tenantID && e.Type == t {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortEdges(out)
	return out, nil
}

func (d *MemoryDriver) GetEdgeBetween(ctx context.Context, t types.EdgeType, sourceUUID, targetUUID, tenantID string) (*types.Edge, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.edges {
		if e.TenantID == tenantID && e.Type == t && e.SourceNodeID == sourceUUID && e.TargetNodeID == targetUUID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, &types.NotFoundError{Kind: "edge", ID: sourceUUID + "->" + targetUUID}
}

func (d *MemoryDriver) GetFindings(ctx context.Context, tenantID string, filter FindingFilter) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*types.Node
	for _, n := range d.nodes {
		if n.TenantID != tenantID || n.Type != types.FindingNodeType {
			continue
		}
		if filter.Domain != "" && n.Domain != filter.Domain {
			continue
		}
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if filter.ExcludeRejected && n.Status == types.FindingStatusRejected {
			continue
		}
		if filter.CurrentOnly && !n.IsCurrent() {
			continue
		}
		if filter.Topic != "" && !strings.Contains(strings.ToLower(n.Content), strings.ToLower(filter.Topic)) &&
			!strings.Contains(strings.ToLower(n.Name), strings.ToLower(filter.Topic)) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ValidAt.Equal(out[j].ValidAt) {
			return out[i].ValidAt.After(out[j].ValidAt)
		}
		return out[i].Uuid < out[j].Uuid
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (d *MemoryDriver) GetEpisodeByContentHash(ctx context.Context, tenantID, hash string) (*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, n := range d.nodes {
		if n.TenantID == tenantID && n.Type == types.EpisodeNodeType && n.ContentHash == hash {
			cp := *n
			return &cp, nil
		}
	}
	return nil, &types.NotFoundError{Kind: "episode", ID: hash}
}

func (d *MemoryDriver) GetEpisodes(ctx context.Context, tenantID string, limit int) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*types.Node
	for _, n := range d.nodes {
		if n.TenantID == tenantID && n.Type == types.EpisodeNodeType {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *MemoryDriver) SearchNodesByEmbedding(ctx context.Context, embedding []float32, tenantID string, limit int) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	type scored struct {
		node  *types.Node
		score float64
	}
	var hits []scored
	for _, n := range d.nodes {
		if n.TenantID != tenantID || len(n.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(embedding, n.Embedding)
		if score <= 0 {
			continue
		}
		cp := *n
		hits = append(hits, scored{&cp, score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].node.Uuid < hits[j].node.Uuid
	})
	out := make([]*types.Node, 0, limit)
	for _, h := range hits {
		out = append(out, h.node)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (d *MemoryDriver) SearchNodesByText(ctx context.Context, query, tenantID string, limit int) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	type scored struct {
		node  *types.Node
		score float64
	}
	var hits []scored
	for _, n := range d.nodes {
		if n.TenantID != tenantID {
			continue
		}
		text := strings.ToLower(n.Name + " " + n.Content)
		score := 0.0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		cp := *n
		hits = append(hits, scored{&cp, score / float64(len(terms))})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].node.Uuid < hits[j].node.Uuid
	})
	out := make([]*types.Node, 0, limit)
	for _, h := range hits {
		out = append(out, h.node)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (d *MemoryDriver) GetNeighbors(ctx context.Context, originUUIDs []string, tenantID string, maxDistance int) ([]*types.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if maxDistance <= 0 {
		maxDistance = 1
	}
	visited := make(map[string]bool, len(originUUIDs))
	frontier := make([]string, 0, len(originUUIDs))
	for _, id := range originUUIDs {
		visited[id] = true
		frontier = append(frontier, id)
	}
	var out []*types.Node
	for depth := 0; depth < maxDistance && len(frontier) > 0; depth++ {
		var next []string
		for _, e := range d.edges {
			if e.TenantID != tenantID {
				continue
			}
			for _, id := range frontier {
				var other string
				switch id {
				case e.SourceNodeID:
					other = e.TargetNodeID
				case e.TargetNodeID:
					other = e.SourceNodeID
				default:
					continue
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
				if n, ok := d.nodes[other]; ok && n.TenantID == tenantID {
					cp := *n
					out = append(out, &cp)
				}
			}
		}
		frontier = next
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Uuid < out[j].Uuid })
	return out, nil
}

func (d *MemoryDriver) UpsertContradiction(ctx context.Context, c *types.Contradiction) error {
	if c.Uuid == "" {
		return types.ErrEmptyUUID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *c
	d.contradictions[c.Uuid] = &cp
	return nil
}

func (d *MemoryDriver) GetContradiction(ctx context.Context, uuid, tenantID string) (*types.Contradiction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contradictions[uuid]
	if !ok || c.TenantID != tenantID {
		return nil, &types.NotFoundError{Kind: "contradiction", ID: uuid}
	}
	cp := *c
	return &cp, nil
}

func (d *MemoryDriver) ListContradictions(ctx context.Context, tenantID string, status types.ContradictionStatus) ([]*types.Contradiction, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*types.Contradiction
	for _, c := range d.contradictions {
		if c.TenantID != tenantID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out, nil
}

func (d *MemoryDriver) GetStats(ctx context.Context, tenantID string) (*GraphStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := &GraphStats{
		NodesByType: make(map[string]int64),
		EdgesByType: make(map[string]int64),
		LastUpdated: time.Now().UTC(),
	}
	for _, n := range d.nodes {
		if n.TenantID != tenantID {
			continue
		}
		stats.NodeCount++
		stats.NodesByType[string(n.Type)]++
	}
	for _, e := range d.edges {
		if e.TenantID != tenantID {
			continue
		}
		stats.EdgeCount++
		stats.EdgesByType[string(e.Type)]++
		if e.Type == types.EdgeContradicts {
			stats.Contradicting++
		}
	}
	return stats, nil
}

func sortEdges(edges []*types.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.Before(edges[j].CreatedAt)
		}
		return edges[i].Uuid < edges[j].Uuid
	})
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
