package truth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/types"
)

func addFinding(t *testing.T, d *driver.MemoryDriver, id, content string, channel types.SourceChannel, validAt time.Time) *types.Node {
	t.Helper()
	node := &types.Node{
		Uuid:          id,
		Name:          content,
		Type:          types.FindingNodeType,
		TenantID:      "tenant-1",
		Content:       content,
		Domain:        types.DomainFinancial,
		Status:        types.FindingStatusActive,
		SourceChannel: channel,
		Confidence:    types.ChannelConfidence(channel),
		ValidAt:       validAt,
		CreatedAt:     validAt,
	}
	require.NoError(t, d.UpsertNode(context.Background(), node))
	return node
}

func TestSupersedePreservesHistory(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	addFinding(t, d, "old", "Revenue was $4.8M", types.ChannelDocument, base)
	addFinding(t, d, "new", "Revenue was actually $5.2M", types.ChannelQAResponse, base.Add(time.Minute))

	require.NoError(t, s.Supersede(ctx, "old", "new", "tenant-1", "analyst correction"))

	// The old finding is invalid but still present.
	old, err := d.GetNode(ctx, "old", "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, old.InvalidAt)

	edge, err := d.GetEdgeBetween(ctx, types.EdgeSupersedes, "new", "old", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "analyst correction", edge.Attributes["reason"])
}

func TestSupersedeIsIdempotent(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	base := time.Now().UTC()

	addFinding(t, d, "old", "Revenue was $4.8M", types.ChannelDocument, base)
	addFinding(t, d, "new", "Revenue was $5.2M", types.ChannelQAResponse, base.Add(time.Minute))

	require.NoError(t, s.Supersede(ctx, "old", "new", "tenant-1", "first"))
	firstInvalidAt := mustGetNode(t, d, "old").InvalidAt

	require.NoError(t, s.Supersede(ctx, "old", "new", "tenant-1", "second"))
	assert.Equal(t, firstInvalidAt, mustGetNode(t, d, "old").InvalidAt, "validity window must not move")

	edges, err := d.GetEdgesByType(ctx, "tenant-1", types.EdgeSupersedes)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestSupersedeSelfRejected(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	err := s.Supersede(context.Background(), "f1", "f1", "tenant-1", "")
	var validationErr *types.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestCurrentTruthAfterSupersession(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	addFinding(t, d, "old", "Revenue was $4.8M", types.ChannelDocument, base)
	addFinding(t, d, "new", "Revenue was actually $5.2M", types.ChannelQAResponse, base.Add(time.Minute))
	require.NoError(t, s.Supersede(ctx, "old", "new", "tenant-1", "correction"))

	current, err := s.CurrentTruth(ctx, "tenant-1", "revenue")
	require.NoError(t, err)
	assert.Equal(t, "new", current.Uuid)

	// History still reaches the superseded finding.
	history, err := s.FindingHistory(ctx, "tenant-1", "revenue")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCurrentTruthChannelConfidenceTieBreak(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)

	// Equal valid_at: the analyst correction outranks the document extract.
	addFinding(t, d, "doc", "Churn rate is 5%", types.ChannelDocument, at)
	addFinding(t, d, "qa", "Churn rate is 4%", types.ChannelQAResponse, at)

	current, err := s.CurrentTruth(ctx, "tenant-1", "churn")
	require.NoError(t, err)
	assert.Equal(t, "qa", current.Uuid)
}

func TestCurrentTruthDeterministicOnFullTie(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)

	addFinding(t, d, "b-finding", "Headcount is 120", types.ChannelDocument, at)
	addFinding(t, d, "a-finding", "Headcount is 125", types.ChannelDocument, at)

	first, err := s.CurrentTruth(ctx, "tenant-1", "headcount")
	require.NoError(t, err)
	second, err := s.CurrentTruth(ctx, "tenant-1", "headcount")
	require.NoError(t, err)
	assert.Equal(t, first.Uuid, second.Uuid, "full tie must break deterministically")
	assert.Equal(t, "a-finding", first.Uuid, "lexicographically smallest UUID wins a full tie")
}

func TestCurrentTruthNoMatch(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)

	_, err := s.CurrentTruth(context.Background(), "tenant-1", "revenue")
	assert.True(t, types.IsNotFound(err))
}

func TestResolveContradiction(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	addFinding(t, d, "f-a", "Revenue was $4.8M", types.ChannelDocument, base)
	addFinding(t, d, "f-b", "Revenue was $5.2M", types.ChannelQAResponse, base.Add(time.Minute))

	require.NoError(t, d.UpsertContradiction(ctx, &types.Contradiction{
		Uuid:       "c1",
		TenantID:   "tenant-1",
		FindingA:   "f-a",
		FindingB:   "f-b",
		Confidence: 0.9,
		Status:     types.ContradictionUnresolved,
		DetectedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.ResolveContradiction(ctx, "c1", "f-b", "tenant-1", "QA response verified"))

	accepted := mustGetNode(t, d, "f-b")
	assert.Equal(t, types.FindingStatusValidated, accepted.Status)

	rejected := mustGetNode(t, d, "f-a")
	assert.Equal(t, types.FindingStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.InvalidAt)

	c, err := d.GetContradiction(ctx, "c1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, types.ContradictionResolved, c.Status)
	assert.NotNil(t, c.ResolvedAt)

	current, err := s.CurrentTruth(ctx, "tenant-1", "revenue")
	require.NoError(t, err)
	assert.Equal(t, "f-b", current.Uuid)
}

func TestAnnotateContradiction(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	addFinding(t, d, "f-a", "Churn was 4% in Q2", types.ChannelDocument, base)
	addFinding(t, d, "f-b", "Churn was 6% in Q2", types.ChannelMeetingNote, base.Add(time.Minute))

	require.NoError(t, d.UpsertContradiction(ctx, &types.Contradiction{
		Uuid:       "c1",
		TenantID:   "tenant-1",
		FindingA:   "f-a",
		FindingB:   "f-b",
		Confidence: 0.8,
		Status:     types.ContradictionUnresolved,
		DetectedAt: time.Now().UTC(),
	}))

	require.NoError(t, s.AnnotateContradiction(ctx, "c1", "tenant-1", types.ContradictionInvestigating, "asked management for the churn definition"))

	c, err := d.GetContradiction(ctx, "c1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, types.ContradictionInvestigating, c.Status)
	assert.Equal(t, "asked management for the churn definition", c.ResolvedNote)
	assert.Nil(t, c.ResolvedAt)

	// Neither finding's validity moves on an annotation.
	assert.Nil(t, mustGetNode(t, d, "f-a").InvalidAt)
	assert.Nil(t, mustGetNode(t, d, "f-b").InvalidAt)

	// A note can still be upgraded or later resolved.
	require.NoError(t, s.AnnotateContradiction(ctx, "c1", "tenant-1", types.ContradictionNoted, "benign definitional difference"))
	c, err = d.GetContradiction(ctx, "c1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, types.ContradictionNoted, c.Status)

	require.NoError(t, s.ResolveContradiction(ctx, "c1", "f-b", "tenant-1", "management confirmed 6%"))
}

func TestAnnotateContradictionRejectsBadStates(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	addFinding(t, d, "f-a", "Revenue was $4.8M", types.ChannelDocument, base)
	addFinding(t, d, "f-b", "Revenue was $5.2M", types.ChannelQAResponse, base.Add(time.Minute))

	require.NoError(t, d.UpsertContradiction(ctx, &types.Contradiction{
		Uuid:       "c1",
		TenantID:   "tenant-1",
		FindingA:   "f-a",
		FindingB:   "f-b",
		Status:     types.ContradictionUnresolved,
		DetectedAt: time.Now().UTC(),
	}))

	var validationErr *types.ValidationError

	err := s.AnnotateContradiction(ctx, "c1", "tenant-1", types.ContradictionResolved, "")
	assert.True(t, errors.As(err, &validationErr), "resolved is not an annotation status")

	err = s.AnnotateContradiction(ctx, "c1", "tenant-1", types.ContradictionStatus("bogus"), "")
	assert.True(t, errors.As(err, &validationErr))

	require.NoError(t, s.ResolveContradiction(ctx, "c1", "f-b", "tenant-1", "verified"))
	err = s.AnnotateContradiction(ctx, "c1", "tenant-1", types.ContradictionNoted, "")
	assert.True(t, errors.As(err, &validationErr), "a resolved contradiction stays closed")
}

func TestResolveContradictionUnknownFinding(t *testing.T) {
	d := driver.NewMemoryDriver()
	s := NewStore(d, nil)
	ctx := context.Background()

	require.NoError(t, d.UpsertContradiction(ctx, &types.Contradiction{
		Uuid:       "c1",
		TenantID:   "tenant-1",
		FindingA:   "f-a",
		FindingB:   "f-b",
		Status:     types.ContradictionUnresolved,
		DetectedAt: time.Now().UTC(),
	}))

	err := s.ResolveContradiction(ctx, "c1", "f-other", "tenant-1", "")
	var validationErr *types.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func mustGetNode(t *testing.T, d *driver.MemoryDriver, id string) *types.Node {
	t.Helper()
	node, err := d.GetNode(context.Background(), id, "tenant-1")
	require.NoError(t, err)
	return node
}
