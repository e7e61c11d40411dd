package resolution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/types"
)

type fakeComparer struct {
	mergeOutcome *nlp.MergeOutcome
	mergeErr     error
	mergeCalls   int
}

func (f *fakeComparer) ComparePairs(ctx context.Context, pairs []nlp.FindingPair) ([]nlp.ComparisonOutcome, error) {
	return nil, nil
}

func (f *fakeComparer) ShouldMerge(ctx context.Context, a, b, contextText string) (*nlp.MergeOutcome, error) {
	f.mergeCalls++
	if f.mergeErr != nil {
		return nil, f.mergeErr
	}
	if f.mergeOutcome != nil {
		return f.mergeOutcome, nil
	}
	return &nlp.MergeOutcome{Merge: false}, nil
}

func newEntity(t *testing.T, d *driver.MemoryDriver, id, name string, entityType types.EntityType) *types.Node {
	t.Helper()
	node := &types.Node{
		Uuid:       id,
		Name:       name,
		Type:       types.EntityNodeType,
		EntityType: entityType,
		TenantID:   "tenant-1",
	}
	require.NoError(t, d.UpsertNode(context.Background(), node))
	return node
}

func TestResolveExactMatchMerges(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &fakeComparer{}
	r := NewResolver(d, comparer, nil)
	ctx := context.Background()

	canonical := newEntity(t, d, "e1", "ABC Corporation", types.EntityTypeCompany)
	incoming := newEntity(t, d, "e2", "ABC Corp", types.EntityTypeCompany)

	decision, err := r.Resolve(ctx, incoming, "")
	require.NoError(t, err)
	assert.True(t, decision.Merged)
	assert.Equal(t, canonical.Uuid, decision.CanonicalID)
	assert.Equal(t, ExactMatchConfidence, decision.Confidence)
	assert.Zero(t, comparer.mergeCalls, "deterministic match should not call the model")

	edge, err := d.GetEdgeBetween(ctx, types.EdgeIsDuplicateOf, incoming.Uuid, canonical.Uuid, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, string(types.ResolutionAuto), edge.Attributes["method"])
	assert.Equal(t, ExactMatchConfidence, edge.Attributes["confidence"])
}

func TestResolveProtectedMetricsNeverMerge(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &fakeComparer{mergeOutcome: &nlp.MergeOutcome{Merge: true, Confidence: 0.99}}
	r := NewResolver(d, comparer, nil)
	ctx := context.Background()

	newEntity(t, d, "m1", "Revenue", types.EntityTypeFinancialMetric)
	incoming := newEntity(t, d, "m2", "Net Revenue", types.EntityTypeFinancialMetric)

	decision, err := r.Resolve(ctx, incoming, "")
	require.NoError(t, err)
	assert.False(t, decision.Merged, "protected metrics must stay distinct")
	assert.Zero(t, comparer.mergeCalls, "protected pairs must not reach the model")
}

func TestResolveSemanticMerge(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &fakeComparer{mergeOutcome: &nlp.MergeOutcome{Merge: true, Confidence: 0.85, Reason: "same company"}}
	r := NewResolver(d, comparer, nil)
	ctx := context.Background()

	canonical := newEntity(t, d, "e1", "Acme Industries", types.EntityTypeCompany)
	incoming := newEntity(t, d, "e2", "Acme Manufacturing Group", types.EntityTypeCompany)

	decision, err := r.Resolve(ctx, incoming, "both appear in the same filing")
	require.NoError(t, err)
	require.True(t, decision.Merged)
	assert.Equal(t, canonical.Uuid, decision.CanonicalID)
	assert.Equal(t, 1, comparer.mergeCalls)
}

func TestResolveLowConfidenceSemanticOutcomeKeepsSeparate(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &fakeComparer{mergeOutcome: &nlp.MergeOutcome{Merge: true, Confidence: 0.4}}
	r := NewResolver(d, comparer, nil)
	ctx := context.Background()

	newEntity(t, d, "e1", "Acme Industries", types.EntityTypeCompany)
	incoming := newEntity(t, d, "e2", "Acme Partners Fund", types.EntityTypeCompany)

	decision, err := r.Resolve(ctx, incoming, "")
	require.NoError(t, err)
	assert.False(t, decision.Merged)
}

func TestManualMergeProtectedMetricRejected(t *testing.T) {
	d := driver.NewMemoryDriver()
	r := NewResolver(d, &fakeComparer{}, nil)
	ctx := context.Background()

	newEntity(t, d, "m1", "Revenue", types.EntityTypeFinancialMetric)
	newEntity(t, d, "e1", "Acme Corp", types.EntityTypeCompany)

	_, err := r.Merge(ctx, "m1", "e1", "tenant-1")
	require.Error(t, err)
	var policyErr *types.PolicyViolationError
	assert.True(t, errors.As(err, &policyErr), "expected PolicyViolationError, got %T", err)
}

func TestManualMergeNotFound(t *testing.T) {
	d := driver.NewMemoryDriver()
	r := NewResolver(d, &fakeComparer{}, nil)

	newEntity(t, d, "e1", "Acme Corp", types.EntityTypeCompany)

	_, err := r.Merge(context.Background(), "e1", "missing", "tenant-1")
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestMergeIsIdempotent(t *testing.T) {
	d := driver.NewMemoryDriver()
	r := NewResolver(d, &fakeComparer{}, nil)
	ctx := context.Background()

	newEntity(t, d, "e1", "Acme Corp", types.EntityTypeCompany)
	newEntity(t, d, "e2", "Acme Holdings", types.EntityTypeCompany)

	first, err := r.Merge(ctx, "e1", "e2", "tenant-1")
	require.NoError(t, err)
	second, err := r.Merge(ctx, "e1", "e2", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, first.Uuid, second.Uuid, "re-merge must return the existing link")
}

func TestMergeThenSplitLeavesAuditTrail(t *testing.T) {
	d := driver.NewMemoryDriver()
	r := NewResolver(d, &fakeComparer{}, nil)
	ctx := context.Background()

	newEntity(t, d, "e1", "Acme Corp", types.EntityTypeCompany)
	newEntity(t, d, "e2", "Acme Holdings", types.EntityTypeCompany)

	edge, err := r.Merge(ctx, "e1", "e2", "tenant-1")
	require.NoError(t, err)

	require.NoError(t, r.Split(ctx, edge.Uuid, "tenant-1"))
	// Split again is a no-op.
	require.NoError(t, r.Split(ctx, edge.Uuid, "tenant-1"))

	// No live duplicate link remains.
	dups, err := r.ListDuplicates(ctx, "tenant-1", 0)
	require.NoError(t, err)
	assert.Empty(t, dups)

	// But the audit edge survives with the split recorded.
	auditEdge, err := d.GetEdge(ctx, edge.Uuid, "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, auditEdge.InvalidAt)
	assert.Equal(t, string(types.ResolutionManual), auditEdge.Attributes["split_method"])
}

func TestListDuplicatesFiltersByConfidence(t *testing.T) {
	d := driver.NewMemoryDriver()
	r := NewResolver(d, &fakeComparer{}, nil)
	ctx := context.Background()

	a := newEntity(t, d, "e1", "Acme Corp", types.EntityTypeCompany)
	b := newEntity(t, d, "e2", "Acme Holdings", types.EntityTypeCompany)
	c := newEntity(t, d, "e3", "Acme Partners", types.EntityTypeCompany)

	_, err := r.upsertDuplicateEdge(ctx, a, b, 0.95, types.ResolutionAuto)
	require.NoError(t, err)
	_, err = r.upsertDuplicateEdge(ctx, a, c, 0.72, types.ResolutionAuto)
	require.NoError(t, err)

	high, err := r.ListDuplicates(ctx, "tenant-1", 0.9)
	require.NoError(t, err)
	assert.Len(t, high, 1)

	all, err := r.ListDuplicates(ctx, "tenant-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
