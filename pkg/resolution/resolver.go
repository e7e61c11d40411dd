package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// SemanticMergeThreshold is the minimum model confidence for an automatic
// merge after the deterministic pre-filter has deferred.
const SemanticMergeThreshold = 0.70

// Resolver merges duplicate entities and exposes the manual override API.
// Writes to a given entity are serialized through per-entity locks; distinct
// entities resolve independently.
type Resolver struct {
	driver   driver.GraphDriver
	comparer nlp.Comparer
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResolver creates a resolver over the given graph driver and comparer.
func NewResolver(d driver.GraphDriver, comparer nlp.Comparer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		driver:   d,
		comparer: comparer,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockPair acquires both entity locks in a stable order so concurrent
// merge/split on the same pair cannot deadlock.
func (r *Resolver) lockPair(a, b string) func() {
	ids := []string{a, b}
	sort.Strings(ids)
	var acquired []*sync.Mutex
	for _, id := range ids {
		r.mu.Lock()
		m, ok := r.locks[id]
		if !ok {
			m = &sync.Mutex{}
			r.locks[id] = m
		}
		r.mu.Unlock()
		m.Lock()
		acquired = append(acquired, m)
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

// Decision records the outcome of resolving a new entity against an existing
// candidate.
type Decision struct {
	Merged      bool                   `json:"merged"`
	CanonicalID string                 `json:"canonical_id,omitempty"`
	Confidence  float64                `json:"confidence"`
	Method      types.ResolutionMethod `json:"method,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
}

// Resolve decides whether the incoming entity duplicates an existing entity
// in the tenant namespace. On a merge decision it writes an IS_DUPLICATE_OF
// audit edge from the incoming entity to the canonical one. Protected metric
// entities are never auto-merged.
func (r *Resolver) Resolve(ctx context.Context, entity *types.Node, contextText string) (*Decision, error) {
	if entity.Type != types.EntityNodeType {
		return nil, &types.ValidationError{Message: "resolve requires an entity node"}
	}

	candidates, err := r.driver.SearchNodesByText(ctx, entity.Name, entity.TenantID, 10)
	if err != nil {
		return nil, fmt.Errorf("searching resolution candidates: %w", err)
	}

	for _, candidate := range candidates {
		if candidate.Uuid == entity.Uuid || candidate.Type != types.EntityNodeType {
			continue
		}
		if candidate.EntityType != entity.EntityType {
			continue
		}

		decision, err := r.compare(ctx, entity, candidate, contextText)
		if err != nil {
			return nil, err
		}
		if decision == nil || !decision.Merged {
			continue
		}

		if err := r.writeDuplicateEdge(ctx, entity, candidate, decision.Confidence, types.ResolutionAuto); err != nil {
			return nil, err
		}
		r.logger.Info("entities merged",
			"tenant_id", entity.TenantID,
			"source", entity.Name,
			"canonical", candidate.Name,
			"confidence", decision.Confidence,
			"method", decision.Method)
		return decision, nil
	}

	return &Decision{Merged: false}, nil
}

// compare runs the two-phase check for one candidate pair.
func (r *Resolver) compare(ctx context.Context, entity, candidate *types.Node, contextText string) (*Decision, error) {
	if IsProtected(entity) || IsProtected(candidate) {
		// Protected metrics stay distinct no matter how similar the names
		// are. This is a normal outcome, not an error, during automatic
		// resolution.
		r.logger.Debug("skipping protected metric pair",
			"a", entity.Name, "b", candidate.Name)
		return nil, nil
	}

	kind, confidence := Prefilter(entity.Name, candidate.Name, entity.EntityType)
	switch kind {
	case MatchExact, MatchContains:
		return &Decision{
			Merged:      true,
			CanonicalID: candidate.Uuid,
			Confidence:  confidence,
			Method:      types.ResolutionAuto,
			Reason:      fmt.Sprintf("deterministic %s match", kind),
		}, nil
	}

	outcome, err := r.comparer.ShouldMerge(ctx, entity.Name, candidate.Name, contextText)
	if err != nil {
		return nil, fmt.Errorf("semantic merge check: %w", err)
	}
	if !outcome.Merge || outcome.Confidence < SemanticMergeThreshold {
		if outcome.Merge {
			r.logger.Debug("merge below confidence threshold",
				"a", entity.Name, "b", candidate.Name,
				"confidence", outcome.Confidence)
		}
		return nil, nil
	}
	return &Decision{
		Merged:      true,
		CanonicalID: candidate.Uuid,
		Confidence:  outcome.Confidence,
		Method:      types.ResolutionAuto,
		Reason:      outcome.Reason,
	}, nil
}

// Merge is the manual override: link source as a duplicate of target. It is
// idempotent and always leaves an audit edge carrying method, confidence and
// timestamp. Merging a protected metric is a policy violation.
func (r *Resolver) Merge(ctx context.Context, sourceID, targetID, tenantID string) (*types.Edge, error) {
	if sourceID == targetID {
		return nil, &types.ValidationError{Message: "cannot merge an entity with itself"}
	}

	unlock := r.lockPair(sourceID, targetID)
	defer unlock()

	source, err := r.driver.GetNode(ctx, sourceID, tenantID)
	if err != nil {
		return nil, err
	}
	target, err := r.driver.GetNode(ctx, targetID, tenantID)
	if err != nil {
		return nil, err
	}

	if IsProtected(source) || IsProtected(target) {
		err := &types.PolicyViolationError{
			Message: fmt.Sprintf("merge of protected metric entity rejected: %q / %q", source.Name, target.Name),
		}
		r.logger.Warn("policy violation", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	// Idempotent: re-merging an already linked pair returns the live edge.
	if existing, err := r.driver.GetEdgeBetween(ctx, types.EdgeIsDuplicateOf, sourceID, targetID, tenantID); err == nil && existing.InvalidAt == nil {
		return existing, nil
	} else if err != nil && !types.IsNotFound(err) {
		return nil, err
	}

	edge, err := r.upsertDuplicateEdge(ctx, source, target, 1.0, types.ResolutionManual)
	if err != nil {
		return nil, err
	}
	r.logger.Info("manual merge",
		"tenant_id", tenantID, "source", source.Name, "target", target.Name)
	return edge, nil
}

// Split undoes a duplicate link. The audit edge is kept permanently; it is
// marked invalid rather than deleted so the decision history survives.
// Splitting an already split edge is a no-op.
func (r *Resolver) Split(ctx context.Context, duplicateEdgeID, tenantID string) error {
	edge, err := r.driver.GetEdge(ctx, duplicateEdgeID, tenantID)
	if err != nil {
		return err
	}
	if edge.Type != types.EdgeIsDuplicateOf {
		return &types.ValidationError{Message: fmt.Sprintf("edge %s is not a duplicate link", duplicateEdgeID)}
	}

	unlock := r.lockPair(edge.SourceNodeID, edge.TargetNodeID)
	defer unlock()

	if edge.InvalidAt != nil {
		return nil
	}

	now := time.Now().UTC()
	edge.InvalidAt = &now
	edge.UpdatedAt = now
	if edge.Attributes == nil {
		edge.Attributes = make(map[string]any)
	}
	edge.Attributes["split_method"] = string(types.ResolutionManual)
	edge.Attributes["split_at"] = now.Format(time.RFC3339)

	if err := r.driver.UpsertEdge(ctx, edge); err != nil {
		return fmt.Errorf("recording split: %w", err)
	}
	r.logger.Info("manual split",
		"tenant_id", tenantID, "edge_id", duplicateEdgeID)
	return nil
}

// ListDuplicates returns live duplicate links at or above minConfidence.
func (r *Resolver) ListDuplicates(ctx context.Context, tenantID string, minConfidence float64) ([]*types.Edge, error) {
	edges, err := r.driver.GetEdgesByType(ctx, tenantID, types.EdgeIsDuplicateOf)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Edge, 0, len(edges))
	for _, edge := range edges {
		if edge.InvalidAt != nil {
			continue
		}
		if conf, ok := edge.Attributes["confidence"].(float64); ok && conf < minConfidence {
			continue
		}
		out = append(out, edge)
	}
	return out, nil
}

func (r *Resolver) writeDuplicateEdge(ctx context.Context, source, target *types.Node, confidence float64, method types.ResolutionMethod) error {
	unlock := r.lockPair(source.Uuid, target.Uuid)
	defer unlock()

	if existing, err := r.driver.GetEdgeBetween(ctx, types.EdgeIsDuplicateOf, source.Uuid, target.Uuid, source.TenantID); err == nil && existing.InvalidAt == nil {
		return nil
	} else if err != nil && !types.IsNotFound(err) {
		return err
	}

	_, err := r.upsertDuplicateEdge(ctx, source, target, confidence, method)
	return err
}

func (r *Resolver) upsertDuplicateEdge(ctx context.Context, source, target *types.Node, confidence float64, method types.ResolutionMethod) (*types.Edge, error) {
	edge := types.NewEdge(uuid.New().String(), types.EdgeIsDuplicateOf, source.Uuid, target.Uuid, source.TenantID)
	edge.Attributes["method"] = string(method)
	edge.Attributes["confidence"] = confidence
	edge.Attributes["created_at"] = edge.CreatedAt.Format(time.RFC3339)
	if err := r.driver.UpsertEdge(ctx, edge); err != nil {
		return nil, fmt.Errorf("writing duplicate edge: %w", err)
	}
	return edge, nil
}
