package contradiction

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealgraph/dealgraph/pkg/checkpoint"
	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// stubComparer flags every compared pair as contradicting at a fixed
// confidence and counts the pairs it actually saw.
type stubComparer struct {
	confidence float64
	pairsSeen  atomic.Int32
	err        error
}

func (s *stubComparer) ComparePairs(ctx context.Context, pairs []nlp.FindingPair) ([]nlp.ComparisonOutcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]nlp.ComparisonOutcome, 0, len(pairs))
	for _, p := range pairs {
		s.pairsSeen.Add(1)
		out = append(out, nlp.ComparisonOutcome{
			PairID:      p.ID,
			Contradicts: true,
			Confidence:  s.confidence,
			Reason:      "conflicting values",
		})
	}
	return out, nil
}

func (s *stubComparer) ShouldMerge(ctx context.Context, a, b, contextText string) (*nlp.MergeOutcome, error) {
	return &nlp.MergeOutcome{}, nil
}

func addFinding(t *testing.T, d *driver.MemoryDriver, id, content string, domain types.Domain, dateRef, chunkID string) *types.Node {
	t.Helper()
	node := &types.Node{
		Uuid:           id,
		Name:           content,
		Type:           types.FindingNodeType,
		TenantID:       "tenant-1",
		Content:        content,
		Domain:         domain,
		Status:         types.FindingStatusActive,
		DateReferenced: dateRef,
		ChunkID:        chunkID,
		ValidAt:        time.Now().UTC(),
		Confidence:     0.85,
		SourceChannel:  types.ChannelDocument,
	}
	require.NoError(t, d.UpsertNode(context.Background(), node))
	return node
}

func newDetector(d *driver.MemoryDriver, comparer nlp.Comparer) *Detector {
	return NewDetector(d, comparer, nil, DefaultConfig(), nil)
}

func TestSweepFindsContradiction(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.9}
	det := newDetector(d, comparer)
	ctx := context.Background()

	addFinding(t, d, "f1", "Revenue was $4.8M in Q2", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "Revenue was $5.2M in Q2", types.DomainFinancial, "2025-Q2", "chunk-2")

	result, err := det.Sweep(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsCompared)
	assert.Equal(t, 1, result.ContradictionsFound)

	stored, err := d.ListContradictions(ctx, "tenant-1", types.ContradictionUnresolved)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 0.9, stored[0].Confidence)

	// Saga: the CONTRADICTS edge was written after the record.
	edge, err := d.GetEdgeBetween(ctx, types.EdgeContradicts, "f1", "f2", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, types.EdgeContradicts, edge.Type)
}

func TestSweepTemporalAlignment(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.9}
	det := newDetector(d, comparer)

	addFinding(t, d, "f1", "Revenue was $4.8M", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "Revenue was $5.2M", types.DomainFinancial, "2025-Q3", "chunk-2")

	result, err := det.Sweep(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, result.PairsCompared, "different reporting periods must never be compared")
	assert.Zero(t, comparer.pairsSeen.Load())
}

func TestSweepSameChunkExclusion(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.9}
	det := newDetector(d, comparer)

	addFinding(t, d, "f1", "Margins expanded", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "Margins contracted", types.DomainFinancial, "2025-Q2", "chunk-1")

	result, err := det.Sweep(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, result.PairsCompared, "same-chunk findings must never be flagged")
}

func TestSweepIdenticalTextExclusion(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.9}
	det := newDetector(d, comparer)

	addFinding(t, d, "f1", "Revenue was $4.8M", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "revenue   was $4.8m", types.DomainFinancial, "2025-Q2", "chunk-2")

	result, err := det.Sweep(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, result.PairsCompared, "identical normalized text must never be compared")
}

func TestSweepExcludesRejectedFindings(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.9}
	det := newDetector(d, comparer)
	ctx := context.Background()

	addFinding(t, d, "f1", "Revenue was $4.8M", types.DomainFinancial, "2025-Q2", "chunk-1")
	rejected := addFinding(t, d, "f2", "Revenue was $5.2M", types.DomainFinancial, "2025-Q2", "chunk-2")
	rejected.Status = types.FindingStatusRejected
	require.NoError(t, d.UpsertNode(ctx, rejected))

	result, err := det.Sweep(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, result.PairsCompared)
}

func TestSweepSubThresholdNotStored(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.5}
	det := newDetector(d, comparer)
	ctx := context.Background()

	addFinding(t, d, "f1", "Revenue was $4.8M", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "Revenue was $5.2M", types.DomainFinancial, "2025-Q2", "chunk-2")

	result, err := det.Sweep(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsCompared)
	assert.Zero(t, result.ContradictionsFound)

	stored, err := d.ListContradictions(ctx, "tenant-1", "")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSweepDeduplicatesBidirectionally(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.9}
	det := newDetector(d, comparer)
	ctx := context.Background()

	addFinding(t, d, "f1", "Revenue was $4.8M", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "Revenue was $5.2M", types.DomainFinancial, "2025-Q2", "chunk-2")

	// Pre-existing record with the findings in the opposite order.
	require.NoError(t, d.UpsertContradiction(ctx, &types.Contradiction{
		Uuid:       "c-prior",
		TenantID:   "tenant-1",
		FindingA:   "f2",
		FindingB:   "f1",
		Confidence: 0.8,
		Status:     types.ContradictionUnresolved,
		DetectedAt: time.Now().UTC(),
	}))

	result, err := det.Sweep(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, result.ContradictionsFound, "reversed pair must deduplicate")

	stored, err := d.ListContradictions(ctx, "tenant-1", "")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestSweepResumesFromCheckpoint(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.9}
	manager, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)
	det := NewDetector(d, comparer, manager, DefaultConfig(), nil)
	ctx := context.Background()

	addFinding(t, d, "f1", "Revenue was $4.8M", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "Revenue was $5.2M", types.DomainFinancial, "2025-Q2", "chunk-2")
	addFinding(t, d, "f3", "Churn rose to 8%", types.DomainOperational, "2025-Q2", "chunk-3")
	addFinding(t, d, "f4", "Churn fell to 3%", types.DomainOperational, "2025-Q2", "chunk-4")

	// A prior run finished the financial group before aborting.
	cp := &checkpoint.SweepCheckpoint{TenantID: "tenant-1", StartedAt: time.Now().UTC()}
	cp.MarkDomainCompleted(types.DomainFinancial)
	require.NoError(t, manager.Save(cp))

	result, err := det.Sweep(ctx, "tenant-1")
	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.Equal(t, 1, result.PairsCompared, "financial group must be skipped on resume")

	// Checkpoint is cleared after a complete sweep.
	after, err := manager.Load("tenant-1")
	require.NoError(t, err)
	assert.Nil(t, after)
}

func TestSweepComparerFailureSavesCheckpoint(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{err: errors.New("model unavailable")}
	manager, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)
	det := NewDetector(d, comparer, manager, DefaultConfig(), nil)
	ctx := context.Background()

	addFinding(t, d, "f1", "Revenue was $4.8M", types.DomainFinancial, "2025-Q2", "chunk-1")
	addFinding(t, d, "f2", "Revenue was $5.2M", types.DomainFinancial, "2025-Q2", "chunk-2")

	_, err = det.Sweep(ctx, "tenant-1")
	require.Error(t, err)

	cp, err := manager.Load("tenant-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.NotEmpty(t, cp.LastError)
}

func TestSweepEmptyTenantID(t *testing.T) {
	det := newDetector(driver.NewMemoryDriver(), &stubComparer{})
	_, err := det.Sweep(context.Background(), "")
	var validationErr *types.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestCandidatePairsGroupCap(t *testing.T) {
	d := driver.NewMemoryDriver()
	comparer := &stubComparer{confidence: 0.1}
	config := DefaultConfig()
	config.GroupCap = 3
	det := NewDetector(d, comparer, nil, config, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		addFinding(t, d, string(rune('a'+i)), "Fact variant "+string(rune('A'+i)), types.DomainFinancial, "2025-Q2", "chunk-"+string(rune('a'+i)))
	}

	result, err := det.Sweep(ctx, "tenant-1")
	require.NoError(t, err)
	// 3 findings capped means at most C(3,2)=3 pairs.
	assert.Equal(t, 3, result.PairsCompared)
}
