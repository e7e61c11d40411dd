package dealgraph

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/resolution"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// IngestResult reports what one episode produced.
type IngestResult struct {
	EpisodeID     string   `json:"episode_id"`
	FindingIDs    []string `json:"finding_ids,omitempty"`
	EntityIDs     []string `json:"entity_ids,omitempty"`
	MergedIDs     []string `json:"merged_ids,omitempty"`
	AlreadyExists bool     `json:"already_exists"`
}

// Ingest processes one episode. Confidence comes from the channel alone:
// a Q&A response outranks a meeting note outranks a document extraction.
// Identical content for the same tenant is detected by content hash and
// skipped, so re-running an ingestion job cannot duplicate episodes.
func (c *Client) Ingest(ctx context.Context, episode types.Episode) (*IngestResult, error) {
	if err := episode.Validate(); err != nil {
		return nil, &types.ValidationError{Message: err.Error()}
	}
	if !types.ValidChannel(episode.Channel) {
		return nil, &types.ValidationError{Message: fmt.Sprintf("unknown source channel %q", episode.Channel)}
	}
	if c.extractor == nil {
		return nil, &types.ValidationError{Message: "client has no extractor configured"}
	}

	// The completion marker distinguishes an episode whose extraction
	// finished from one left behind by a failed attempt. Only complete
	// episodes short-circuit; incomplete ones are resumed so a retry
	// after an extraction failure still produces findings.
	hash := episode.Hash()
	existing, err := c.driver.GetEpisodeByContentHash(ctx, episode.TenantID, hash)
	switch {
	case err == nil:
		if _, done := existing.Attributes[findingCountAttr]; done {
			c.logger.Info("episode already ingested",
				"tenant_id", episode.TenantID, "episode_id", existing.Uuid)
			return &IngestResult{EpisodeID: existing.Uuid, AlreadyExists: true}, nil
		}
		c.logger.Warn("resuming incomplete episode",
			"tenant_id", episode.TenantID, "episode_id", existing.Uuid)
	case !types.IsNotFound(err):
		return nil, err
	default:
		existing = nil
	}

	now := time.Now().UTC()
	reference := episode.Reference
	if reference.IsZero() {
		reference = now
	}

	// Extraction and embedding run before any graph write, so a model
	// failure leaves no episode node behind to defeat the retry.
	extraction, err := c.extractor.Extract(ctx, episode.Content)
	if err != nil {
		return nil, fmt.Errorf("extracting findings: %w", err)
	}
	embeddings, err := c.embedFindings(ctx, extraction.Findings)
	if err != nil {
		return nil, err
	}

	episodeNode := existing
	if episodeNode == nil {
		episodeNode = &types.Node{
			Uuid:        uuid.New().String(),
			Name:        episodeName(episode),
			Type:        types.EpisodeNodeType,
			EntityType:  types.EntityTypeEpisode,
			TenantID:    episode.TenantID,
			Content:     episode.Content,
			ContentHash: hash,
			CreatedAt:   now,
			ValidAt:     reference,
			Attributes:  provenanceAttributes(episode),
		}
	}
	episodeNode.UpdatedAt = now
	if err := c.driver.UpsertNode(ctx, episodeNode); err != nil {
		return nil, fmt.Errorf("writing episode: %w", err)
	}

	result := &IngestResult{EpisodeID: episodeNode.Uuid}
	confidence := types.ChannelConfidence(episode.Channel)
	entityIDs := make(map[string]string)

	for i, extracted := range extraction.Findings {
		finding, err := c.writeFinding(ctx, episodeNode, extracted, embeddings[i], episode, confidence, reference)
		if err != nil {
			return nil, err
		}
		result.FindingIDs = append(result.FindingIDs, finding.Uuid)

		for _, mention := range extracted.Entities {
			entityID, merged, err := c.writeEntity(ctx, episodeNode, finding, mention, episode.TenantID, entityIDs)
			if err != nil {
				return nil, err
			}
			if merged != "" {
				result.MergedIDs = append(result.MergedIDs, merged)
			}
			if entityID != "" {
				result.EntityIDs = appendUnique(result.EntityIDs, entityID)
			}
		}
	}

	if episodeNode.Attributes == nil {
		episodeNode.Attributes = provenanceAttributes(episode)
	}
	episodeNode.Attributes[findingCountAttr] = len(result.FindingIDs)
	episodeNode.UpdatedAt = time.Now().UTC()
	if err := c.driver.UpsertNode(ctx, episodeNode); err != nil {
		return nil, fmt.Errorf("marking episode complete: %w", err)
	}

	c.logger.Info("episode ingested",
		"tenant_id", episode.TenantID,
		"episode_id", episodeNode.Uuid,
		"channel", episode.Channel,
		"findings", len(result.FindingIDs),
		"entities", len(result.EntityIDs))
	return result, nil
}

// findingCountAttr marks an episode whose extraction has completed. It is
// written last; its absence on a stored episode means a prior attempt died
// partway and the episode must be re-extracted.
const findingCountAttr = "finding_count"

// embedFindings embeds every finding in one batch before anything is
// persisted. With no embedder configured it returns placeholder nils of the
// same length.
func (c *Client) embedFindings(ctx context.Context, findings []nlp.ExtractedFinding) ([][]float32, error) {
	if c.embedder == nil || len(findings) == 0 {
		return make([][]float32, len(findings)), nil
	}
	texts := make([]string, len(findings))
	for i, f := range findings {
		texts[i] = f.Content
	}
	embeddings, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding findings: %w", err)
	}
	if len(embeddings) != len(findings) {
		return nil, fmt.Errorf("embedding findings: got %d vectors for %d findings", len(embeddings), len(findings))
	}
	return embeddings, nil
}

// writeFinding persists one extracted finding with its embedding and the
// EXTRACTED_FROM provenance edge.
func (c *Client) writeFinding(ctx context.Context, episodeNode *types.Node, extracted nlp.ExtractedFinding, embedding []float32, episode types.Episode, confidence float64, reference time.Time) (*types.Node, error) {
	now := time.Now().UTC()
	finding := &types.Node{
		Uuid:           uuid.New().String(),
		Name:           extracted.Content,
		Type:           types.FindingNodeType,
		EntityType:     types.EntityTypeFinding,
		TenantID:       episode.TenantID,
		Content:        extracted.Content,
		Confidence:     confidence,
		SourceChannel:  episode.Channel,
		FindingType:    extracted.FindingType,
		Domain:         types.Domain(extracted.Domain),
		Status:         types.FindingStatusActive,
		DateReferenced: extracted.DateReferenced,
		ChunkID:        chunkID(episode),
		ValidAt:        reference,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	finding.Embedding = embedding

	if err := c.driver.UpsertNode(ctx, finding); err != nil {
		return nil, fmt.Errorf("writing finding: %w", err)
	}

	edge := types.NewEdge(uuid.New().String(), types.EdgeExtractedFrom, finding.Uuid, episodeNode.Uuid, episode.TenantID)
	if episode.Provenance.Page > 0 {
		edge.Attributes["page"] = episode.Provenance.Page
	}
	if episode.Provenance.ChunkIndex > 0 {
		edge.Attributes["chunk_index"] = episode.Provenance.ChunkIndex
	}
	if err := c.driver.UpsertEdge(ctx, edge); err != nil {
		return nil, fmt.Errorf("linking finding to episode: %w", err)
	}
	return finding, nil
}

// writeEntity upserts one entity mention, resolves it against existing
// entities, and links it to its episode and finding. entityIDs memoizes
// mentions already handled within this episode by normalized name.
func (c *Client) writeEntity(ctx context.Context, episodeNode, finding *types.Node, mention nlp.ExtractedEntity, tenantID string, entityIDs map[string]string) (entityID, mergedID string, err error) {
	if mention.Name == "" {
		return "", "", nil
	}
	entityType := types.EntityType(mention.Type)
	key := string(entityType) + "\x00" + resolution.NormalizeName(mention.Name, entityType)

	entityID, seen := entityIDs[key]
	if !seen {
		now := time.Now().UTC()
		entity := &types.Node{
			Uuid:       uuid.New().String(),
			Name:       mention.Name,
			Type:       types.EntityNodeType,
			EntityType: entityType,
			TenantID:   tenantID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if mention.Role != "" {
			entity.Attributes = map[string]any{"role": mention.Role}
		}
		if err := c.driver.UpsertNode(ctx, entity); err != nil {
			return "", "", fmt.Errorf("writing entity: %w", err)
		}

		decision, err := c.resolver.Resolve(ctx, entity, finding.Content)
		if err != nil {
			return "", "", fmt.Errorf("resolving entity %q: %w", mention.Name, err)
		}
		entityID = entity.Uuid
		if decision.Merged {
			mergedID = entity.Uuid
			entityID = decision.CanonicalID
		}
		entityIDs[key] = entityID

		mentions := types.NewEdge(uuid.New().String(), types.EdgeMentions, episodeNode.Uuid, entityID, tenantID)
		if err := c.driver.UpsertEdge(ctx, mentions); err != nil {
			return "", "", fmt.Errorf("linking episode mention: %w", err)
		}
	}

	relates := types.NewEdge(uuid.New().String(), types.EdgeRelatesTo, finding.Uuid, entityID, tenantID)
	if err := c.driver.UpsertEdge(ctx, relates); err != nil {
		return "", "", fmt.Errorf("linking finding entity: %w", err)
	}
	return entityID, mergedID, nil
}

// chunkID identifies the source chunk a finding came from, used by the
// contradiction detector's same-chunk exclusion.
func chunkID(episode types.Episode) string {
	p := episode.Provenance
	if p.SourceID == "" && p.ChunkIndex == 0 {
		return episode.Hash()[:16]
	}
	return fmt.Sprintf("%s#%d", p.SourceID, p.ChunkIndex)
}

func provenanceAttributes(episode types.Episode) map[string]any {
	attrs := map[string]any{
		"channel": string(episode.Channel),
	}
	p := episode.Provenance
	if p.SourceID != "" {
		attrs["source_id"] = p.SourceID
	}
	if p.Title != "" {
		attrs["title"] = p.Title
	}
	if p.Page > 0 {
		attrs["page"] = p.Page
	}
	if p.Sheet != "" {
		attrs["sheet"] = p.Sheet
	}
	if p.Cell != "" {
		attrs["cell"] = p.Cell
	}
	if p.ChunkIndex > 0 {
		attrs["chunk_index"] = p.ChunkIndex
	}
	return attrs
}

func episodeName(episode types.Episode) string {
	if episode.Provenance.Title != "" {
		return episode.Provenance.Title
	}
	content := episode.Content
	if len(content) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}
	return content
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
