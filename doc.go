/*
Package dealgraph is a temporal knowledge graph intelligence layer for due
diligence work. It turns raw deal material into findings with provenance,
keeps every version of the truth, and answers queries with cited, current
facts.

# Model

Content enters as episodes: one document chunk, Q&A answer, or chat message
plus its provenance and channel. Ingestion extracts atomic findings and
entity mentions, assigns confidence from the channel alone, and links each
finding back to its episode. Facts are never deleted: when a newer finding
replaces an older one, the old finding is marked invalid and the two are
linked with a SUPERSEDES edge, so current-truth queries and history queries
see different slices of the same graph.

# Components

Five components share one graph store behind the GraphDriver interface:

  - Ingestion assigns channel-derived confidence and writes episodes,
    findings, entities, and provenance edges.
  - Entity resolution merges duplicate entities in two phases, deterministic
    normalization first and a semantic model check second. Protected metric
    concepts never merge.
  - The contradiction detector sweeps current findings per domain group,
    batching candidate pairs to a comparison model.
  - The temporal truth store applies supersessions and ranks current truth.
  - Hybrid retrieval fuses vector, lexical, and graph candidates, reranks
    with a cross-encoder, and filters superseded facts unconditionally.

# Usage

	graphDriver, err := driver.NewNeo4jDriver(uri, user, password, database)
	if err != nil { ... }
	nlpClient := nlp.NewOpenAIClient(apiKey, nlp.Config{})
	embedderClient := embedder.NewOpenAIClient(apiKey, embedder.Config{})

	client, err := dealgraph.NewClient(graphDriver, nlpClient, embedderClient, nil)
	if err != nil { ... }
	defer client.Close(ctx)

	result, err := client.Ingest(ctx, types.Episode{
		Content:  "Revenue was $4.8M in Q2",
		TenantID: "deal-123",
		Channel:  types.ChannelDocument,
	})

All operations are tenant scoped; no query crosses tenant namespaces.
*/
package dealgraph
