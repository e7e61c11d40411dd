package dealgraph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealgraph/dealgraph/pkg/crossencoder"
	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// scriptedExtractor returns canned extractions keyed by content substring.
type scriptedExtractor struct {
	script map[string]*nlp.Extraction
}

func (s *scriptedExtractor) Extract(ctx context.Context, content string) (*nlp.Extraction, error) {
	for key, extraction := range s.script {
		if strings.Contains(content, key) {
			return extraction, nil
		}
	}
	// Default: one operational finding, no entities.
	return &nlp.Extraction{Findings: []nlp.ExtractedFinding{{
		Content: content,
		Domain:  string(types.DomainOperational),
	}}}, nil
}

// neverMergeComparer keeps everything separate and flags nothing.
type neverMergeComparer struct{}

func (neverMergeComparer) ComparePairs(ctx context.Context, pairs []nlp.FindingPair) ([]nlp.ComparisonOutcome, error) {
	out := make([]nlp.ComparisonOutcome, len(pairs))
	for i, p := range pairs {
		out[i] = nlp.ComparisonOutcome{PairID: p.ID}
	}
	return out, nil
}

func (neverMergeComparer) ShouldMerge(ctx context.Context, a, b, contextText string) (*nlp.MergeOutcome, error) {
	return &nlp.MergeOutcome{Merge: false}, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (fixedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (fixedEmbedder) Dimensions() int { return 3 }
func (fixedEmbedder) Close() error    { return nil }

func newTestClient(t *testing.T, extractor nlp.Extractor) (*Client, *driver.MemoryDriver) {
	t.Helper()
	d := driver.NewMemoryDriver()
	client, err := NewClient(d, nil, fixedEmbedder{}, &Options{
		Extractor: extractor,
		Comparer:  neverMergeComparer{},
		Reranker:  crossencoder.NewLocalRerankerClient(crossencoder.Config{}),
	})
	require.NoError(t, err)
	return client, d
}

func docEpisode(content, sourceID string) types.Episode {
	return types.Episode{
		Content:  content,
		TenantID: "deal-1",
		Channel:  types.ChannelDocument,
		Provenance: types.ProvenanceRef{
			SourceID: sourceID,
			Title:    "Q2 Financial Package",
			Page:     3,
		},
	}
}

func TestIngestAssignsChannelConfidence(t *testing.T) {
	extractor := &scriptedExtractor{script: map[string]*nlp.Extraction{
		"Revenue": {Findings: []nlp.ExtractedFinding{{
			Content:        "Revenue was $4.8M in Q2",
			Domain:         string(types.DomainFinancial),
			DateReferenced: "2025-Q2",
		}}},
	}}
	client, d := newTestClient(t, extractor)
	ctx := context.Background()

	result, err := client.Ingest(ctx, docEpisode("Revenue was $4.8M in Q2", "doc-1"))
	require.NoError(t, err)
	require.Len(t, result.FindingIDs, 1)

	finding, err := d.GetNode(ctx, result.FindingIDs[0], "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 0.85, finding.Confidence, "document channel confidence")
	assert.Equal(t, types.ChannelDocument, finding.SourceChannel)

	// Provenance edge exists.
	edge, err := d.GetEdgeBetween(ctx, types.EdgeExtractedFrom, finding.Uuid, result.EpisodeID, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 3, edge.Attributes["page"])
}

func TestIngestIsIdempotent(t *testing.T) {
	client, d := newTestClient(t, &scriptedExtractor{})
	ctx := context.Background()

	episode := docEpisode("Headcount stayed flat in Q2", "doc-1")
	first, err := client.Ingest(ctx, episode)
	require.NoError(t, err)
	assert.False(t, first.AlreadyExists)

	second, err := client.Ingest(ctx, episode)
	require.NoError(t, err)
	assert.True(t, second.AlreadyExists)
	assert.Equal(t, first.EpisodeID, second.EpisodeID)

	episodes, err := d.GetEpisodes(ctx, "deal-1", 10)
	require.NoError(t, err)
	assert.Len(t, episodes, 1, "re-ingesting identical content must not duplicate the episode")
}

// failOnceExtractor fails its first call, then delegates.
type failOnceExtractor struct {
	inner nlp.Extractor
	calls int
}

func (f *failOnceExtractor) Extract(ctx context.Context, content string) (*nlp.Extraction, error) {
	f.calls++
	if f.calls == 1 {
		return nil, &types.UpstreamError{Service: "nlp", Err: errors.New("model timeout")}
	}
	return f.inner.Extract(ctx, content)
}

func TestIngestRetriesAfterExtractionFailure(t *testing.T) {
	extractor := &failOnceExtractor{inner: &scriptedExtractor{}}
	client, d := newTestClient(t, extractor)
	ctx := context.Background()

	episode := docEpisode("ARR grew 22% year over year", "doc-2")
	_, err := client.Ingest(ctx, episode)
	require.Error(t, err)

	// The failed attempt must leave nothing behind that defeats the retry.
	retry, err := client.Ingest(ctx, episode)
	require.NoError(t, err)
	assert.False(t, retry.AlreadyExists)
	assert.NotEmpty(t, retry.FindingIDs, "a retried episode must still produce findings")

	episodes, err := d.GetEpisodes(ctx, "deal-1", 10)
	require.NoError(t, err)
	assert.Len(t, episodes, 1)

	third, err := client.Ingest(ctx, episode)
	require.NoError(t, err)
	assert.True(t, third.AlreadyExists)
	assert.Equal(t, retry.EpisodeID, third.EpisodeID)
	assert.Equal(t, 2, extractor.calls, "a completed episode must not be re-extracted")
}

func TestIngestResumesIncompleteEpisode(t *testing.T) {
	client, d := newTestClient(t, &scriptedExtractor{})
	ctx := context.Background()

	// An episode stored without its completion marker models an ingestion
	// that died between the episode write and its findings.
	episode := docEpisode("Gross margin held at 71%", "doc-3")
	now := time.Now().UTC()
	require.NoError(t, d.UpsertNode(ctx, &types.Node{
		Uuid:        "ep-partial",
		Name:        "Q2 Financial Package",
		Type:        types.EpisodeNodeType,
		EntityType:  types.EntityTypeEpisode,
		TenantID:    "deal-1",
		Content:     episode.Content,
		ContentHash: episode.Hash(),
		CreatedAt:   now,
		UpdatedAt:   now,
		ValidAt:     now,
	}))

	result, err := client.Ingest(ctx, episode)
	require.NoError(t, err)
	assert.False(t, result.AlreadyExists)
	assert.Equal(t, "ep-partial", result.EpisodeID, "the stored episode is reused, not duplicated")
	assert.NotEmpty(t, result.FindingIDs)

	again, err := client.Ingest(ctx, episode)
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)
}

func TestEpisodeNameTruncatesOnRuneBoundary(t *testing.T) {
	// 40 three-byte runes: the 80-byte cut lands inside a rune.
	content := strings.Repeat("語", 40)
	name := episodeName(types.Episode{Content: content})
	assert.True(t, utf8.ValidString(name), "truncation must not split a rune")
	assert.LessOrEqual(t, len(name), 80)
	assert.Equal(t, 26, utf8.RuneCountInString(name))

	short := episodeName(types.Episode{Content: "Revenue was $4.8M"})
	assert.Equal(t, "Revenue was $4.8M", short)
}

func TestIngestRejectsUnknownChannel(t *testing.T) {
	client, _ := newTestClient(t, &scriptedExtractor{})

	_, err := client.Ingest(context.Background(), types.Episode{
		Content:  "anything",
		TenantID: "deal-1",
		Channel:  types.SourceChannel("carrier_pigeon"),
	})
	var validationErr *types.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCompanyMentionsResolveToOneEntity(t *testing.T) {
	extractor := &scriptedExtractor{script: map[string]*nlp.Extraction{
		"ABC Corp signed": {Findings: []nlp.ExtractedFinding{{
			Content:  "ABC Corp signed a three year lease",
			Domain:   string(types.DomainOperational),
			Entities: []nlp.ExtractedEntity{{Name: "ABC Corp", Type: "Company"}},
		}}},
		"ABC Corporation renewed": {Findings: []nlp.ExtractedFinding{{
			Content:  "ABC Corporation renewed its insurance",
			Domain:   string(types.DomainOperational),
			Entities: []nlp.ExtractedEntity{{Name: "ABC Corporation", Type: "Company"}},
		}}},
	}}
	client, _ := newTestClient(t, extractor)
	ctx := context.Background()

	first, err := client.Ingest(ctx, docEpisode("ABC Corp signed a three year lease", "doc-1"))
	require.NoError(t, err)
	second, err := client.Ingest(ctx, docEpisode("ABC Corporation renewed its insurance", "doc-2"))
	require.NoError(t, err)

	require.Len(t, first.EntityIDs, 1)
	require.Len(t, second.EntityIDs, 1)
	assert.Equal(t, first.EntityIDs[0], second.EntityIDs[0],
		"ABC Corp and ABC Corporation must resolve to the same entity")
	assert.Len(t, second.MergedIDs, 1)

	// The merge left an audit edge.
	dups, err := client.ListDuplicates(ctx, "deal-1", 0)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, string(types.ResolutionAuto), dups[0].Attributes["method"])
}

func TestProtectedMetricsStayDistinct(t *testing.T) {
	extractor := &scriptedExtractor{script: map[string]*nlp.Extraction{
		"Revenue was": {Findings: []nlp.ExtractedFinding{{
			Content:  "Revenue was $4.8M",
			Domain:   string(types.DomainFinancial),
			Entities: []nlp.ExtractedEntity{{Name: "Revenue", Type: "FinancialMetric"}},
		}}},
		"Net Revenue was": {Findings: []nlp.ExtractedFinding{{
			Content:  "Net Revenue was $4.1M",
			Domain:   string(types.DomainFinancial),
			Entities: []nlp.ExtractedEntity{{Name: "Net Revenue", Type: "FinancialMetric"}},
		}}},
	}}
	client, _ := newTestClient(t, extractor)
	ctx := context.Background()

	first, err := client.Ingest(ctx, docEpisode("Revenue was $4.8M", "doc-1"))
	require.NoError(t, err)
	second, err := client.Ingest(ctx, docEpisode("Net Revenue was $4.1M", "doc-2"))
	require.NoError(t, err)

	require.Len(t, first.EntityIDs, 1)
	require.Len(t, second.EntityIDs, 1)
	assert.NotEqual(t, first.EntityIDs[0], second.EntityIDs[0],
		"Revenue and Net Revenue must remain distinct entities")
	assert.Empty(t, second.MergedIDs)
}

func TestRevenueCorrectionScenario(t *testing.T) {
	extractor := &scriptedExtractor{script: map[string]*nlp.Extraction{
		"$4.8M": {Findings: []nlp.ExtractedFinding{{
			Content:        "Revenue was $4.8M in Q2",
			Domain:         string(types.DomainFinancial),
			DateReferenced: "2025-Q2",
		}}},
		"$5.2M": {Findings: []nlp.ExtractedFinding{{
			Content:        "Revenue was actually $5.2M in Q2",
			Domain:         string(types.DomainFinancial),
			DateReferenced: "2025-Q2",
		}}},
	}}
	client, _ := newTestClient(t, extractor)
	ctx := context.Background()

	docResult, err := client.Ingest(ctx, docEpisode("Revenue was $4.8M in Q2", "doc-1"))
	require.NoError(t, err)

	qaResult, err := client.Ingest(ctx, types.Episode{
		Content:  "Revenue was actually $5.2M in Q2",
		TenantID: "deal-1",
		Channel:  types.ChannelQAResponse,
		Provenance: types.ProvenanceRef{
			SourceID: "qa-7",
			Title:    "Management Q&A round 2",
		},
	})
	require.NoError(t, err)

	oldFinding, newFinding := docResult.FindingIDs[0], qaResult.FindingIDs[0]
	require.NoError(t, client.Supersede(ctx, oldFinding, newFinding, "deal-1", "management correction"))

	current, err := client.CurrentTruth(ctx, "deal-1", "revenue")
	require.NoError(t, err)
	assert.Equal(t, newFinding, current.Uuid)
	assert.Equal(t, 0.95, current.Confidence, "qa_response channel confidence")

	// The old figure stays in history but never in retrieval.
	history, err := client.FindingHistory(ctx, "deal-1", "revenue")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	results, err := client.Retrieve(ctx, "revenue Q2", "deal-1", 50, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.NotEqual(t, oldFinding, r.Finding.Uuid)
	}
	assert.Equal(t, "qa-7", results[0].Citation.ItemID)
	assert.Equal(t, types.CitationQA, results[0].Citation.SourceType)
}

func TestSweepThenResolveContradiction(t *testing.T) {
	extractor := &scriptedExtractor{script: map[string]*nlp.Extraction{
		"$4.8M": {Findings: []nlp.ExtractedFinding{{
			Content:        "Revenue was $4.8M in Q2",
			Domain:         string(types.DomainFinancial),
			DateReferenced: "2025-Q2",
		}}},
		"$5.2M": {Findings: []nlp.ExtractedFinding{{
			Content:        "Revenue was $5.2M in Q2",
			Domain:         string(types.DomainFinancial),
			DateReferenced: "2025-Q2",
		}}},
	}}
	d := driver.NewMemoryDriver()
	client, err := NewClient(d, nil, fixedEmbedder{}, &Options{
		Extractor: extractor,
		Comparer:  contradictingComparer{},
		Reranker:  crossencoder.NewLocalRerankerClient(crossencoder.Config{}),
	})
	require.NoError(t, err)
	ctx := context.Background()

	docResult, err := client.Ingest(ctx, docEpisode("Revenue was $4.8M in Q2", "doc-1"))
	require.NoError(t, err)
	qaResult, err := client.Ingest(ctx, types.Episode{
		Content:    "Revenue was $5.2M in Q2",
		TenantID:   "deal-1",
		Channel:    types.ChannelQAResponse,
		Provenance: types.ProvenanceRef{SourceID: "qa-1"},
	})
	require.NoError(t, err)

	sweep, err := client.RunContradictionSweep(ctx, "deal-1")
	require.NoError(t, err)
	require.Equal(t, 1, sweep.ContradictionsFound)

	open, err := client.ListContradictions(ctx, "deal-1", types.ContradictionUnresolved)
	require.NoError(t, err)
	require.Len(t, open, 1)

	accepted := qaResult.FindingIDs[0]
	require.NoError(t, client.ResolveContradiction(ctx, open[0].Uuid, accepted, "deal-1", "QA figure verified"))

	current, err := client.CurrentTruth(ctx, "deal-1", "revenue")
	require.NoError(t, err)
	assert.Equal(t, accepted, current.Uuid)

	rejected, err := d.GetNode(ctx, docResult.FindingIDs[0], "deal-1")
	require.NoError(t, err)
	assert.Equal(t, types.FindingStatusRejected, rejected.Status)
	assert.NotNil(t, rejected.InvalidAt)
}

// contradictingComparer flags every pair at high confidence.
type contradictingComparer struct{}

func (contradictingComparer) ComparePairs(ctx context.Context, pairs []nlp.FindingPair) ([]nlp.ComparisonOutcome, error) {
	out := make([]nlp.ComparisonOutcome, len(pairs))
	for i, p := range pairs {
		out[i] = nlp.ComparisonOutcome{PairID: p.ID, Contradicts: true, Confidence: 0.92, Reason: "figures differ"}
	}
	return out, nil
}

func (contradictingComparer) ShouldMerge(ctx context.Context, a, b, contextText string) (*nlp.MergeOutcome, error) {
	return &nlp.MergeOutcome{Merge: false}, nil
}

func TestMergeThenSplitRestoresIndependence(t *testing.T) {
	client, d := newTestClient(t, &scriptedExtractor{})
	ctx := context.Background()

	for _, e := range []*types.Node{
		{Uuid: "e1", Name: "Acme Corp", Type: types.EntityNodeType, EntityType: types.EntityTypeCompany, TenantID: "deal-1"},
		{Uuid: "e2", Name: "Acme Holdings", Type: types.EntityNodeType, EntityType: types.EntityTypeCompany, TenantID: "deal-1"},
	} {
		require.NoError(t, d.UpsertNode(ctx, e))
	}

	edge, err := client.MergeEntities(ctx, "e1", "e2", "deal-1")
	require.NoError(t, err)
	require.NoError(t, client.SplitEntities(ctx, edge.Uuid, "deal-1"))

	dups, err := client.ListDuplicates(ctx, "deal-1", 0)
	require.NoError(t, err)
	assert.Empty(t, dups, "no live duplicate link may remain after split")

	// Both entities remain queryable.
	for _, id := range []string{"e1", "e2"} {
		node, err := d.GetNode(ctx, id, "deal-1")
		require.NoError(t, err)
		assert.Equal(t, types.EntityNodeType, node.Type)
	}
}
