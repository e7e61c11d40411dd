package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// Neo4jDriver implements GraphDriver for Neo4j databases.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a new Neo4j driver instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jDriver{client: client, database: database}, nil
}

func (d *Neo4jDriver) Provider() GraphProvider { return GraphProviderNeo4j }

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.client.Close(ctx)
}

func labelForNodeType(t types.NodeType) string {
	switch t {
	case types.FindingNodeType:
		return "Finding"
	case types.EpisodeNodeType:
		return "Episode"
	default:
		return "Entity"
	}
}

func nodeTypeForLabels(labels []string) types.NodeType {
	for _, l := range labels {
		switch l {
		case "Finding":
			return types.FindingNodeType
		case "Episode":
			return types.EpisodeNodeType
		}
	}
	return types.EntityNodeType
}

func (d *Neo4jDriver) session(ctx context.Context) neo4j.SessionWithContext {
	return d.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: d.database})
}

// wrapUpstream classifies connectivity failures so callers can retry them.
func wrapUpstream(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "timeout") || strings.Contains(msg, "refused") {
		return &types.UpstreamError{Service: "graph store", Err: err}
	}
	return err
}

func (d *Neo4jDriver) GetNode(ctx context.Context, uuid, tenantID string) (*types.Node, error) {
	session := d.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (n {uuid: $uuid, tenant_id: $tenant_id})
			RETURN n
		`, map[string]any{"uuid": uuid, "tenant_id": tenantID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapUpstream(err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, &types.NotFoundError{Kind: "node", ID: uuid}
	}
	value, _ := records[0].Get("n")
	dbNode, ok := value.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected node type %T", value)
	}
	return nodeFromDBNode(dbNode), nil
}

func (d *Neo4jDriver) GetNodes(ctx context.Context, uuids []string, tenantID string) ([]*types.Node, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	return d.collectNodes(ctx, `
		MATCH (n {tenant_id: $tenant_id})
		WHERE n.uuid IN $uuids
		RETURN n
	`, map[string]any{"uuids": uuids, "tenant_id": tenantID})
}

func (d *Neo4jDriver) UpsertNode(ctx context.Context, node *types.Node) error {
	if err := node.ValidateForCreate(); err != nil {
		return err
	}
	session := d.session(ctx)
	defer session.Close(ctx)

	props := nodeProps(node)
	query := fmt.Sprintf(`
		MERGE (n:%s {uuid: $uuid})
		ON CREATE SET n.created_at = $now
		SET n += $props, n.updated_at = $now
	`, labelForNodeType(node.Type))

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{
			"uuid":  node.Uuid,
			"props": props,
			"now":   time.Now().UTC(),
		})
	})
	return wrapUpstream(err)
}

func (d *Neo4jDriver) UpsertNodes(ctx context.Context, nodes []*types.Node) error {
	for _, n := range nodes {
		if err := d.UpsertNode(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (d *Neo4jDriver) DeleteNode(ctx context.Context, uuid, tenantID string) error {
	session := d.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (n {uuid: $uuid, tenant_id: $tenant_id})
			DETACH DELETE n
		`, map[string]any{"uuid": uuid, "tenant_id": tenantID})
	})
	return wrapUpstream(err)
}

func (d *Neo4jDriver) GetEdge(ctx context.Context, uuid, tenantID string) (*types.Edge, error) {
	session := d.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s)-[e {uuid: $uuid, tenant_id: $tenant_id}]->(t)
			RETURN e, type(e) AS edge_type, s.uuid AS source_uuid, t.uuid AS target_uuid
		`, map[string]any{"uuid": uuid, "tenant_id": tenantID})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapUpstream(err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, &types.NotFoundError{Kind: "edge", ID: uuid}
	}
	return edgeFromRecord(records[0])
}

func (d *Neo4jDriver) UpsertEdge(ctx context.Context, edge *types.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	src, err := d.GetNode(ctx, edge.SourceNodeID, edge.TenantID)
	if err != nil {
		return err
	}
	dst, err := d.GetNode(ctx, edge.TargetNodeID, edge.TenantID)
	if err != nil {
		return err
	}
	if err := types.ValidateEdgeForPair(edge.Type, src.Type, dst.Type); err != nil {
		return err
	}

	session := d.session(ctx)
	defer session.Close(ctx)

	// Edge type comes from the closed EdgeType enum, never from user input.
	query := fmt.Sprintf(`
		MATCH (s {uuid: $source_uuid, tenant_id: $tenant_id})
		MATCH (t {uuid: $target_uuid, tenant_id: $tenant_id})
		MERGE (s)-[e:%s {uuid: $uuid}]->(t)
		ON CREATE SET e.created_at = $now
		SET e += $props, e.updated_at = $now
	`, string(edge.Type))

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{
			"source_uuid": edge.SourceNodeID,
			"target_uuid": edge.TargetNodeID,
			"tenant_id":   edge.TenantID,
			"uuid":        edge.Uuid,
			"props":       edgeProps(edge),
			"now":         time.Now().UTC(),
		})
	})
	return wrapUpstream(err)
}

func (d *Neo4jDriver) DeleteEdge(ctx context.Context, uuid, tenantID string) error {
	session := d.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH ()-[e {uuid: $uuid, tenant_id: $tenant_id}]->()
			DELETE e
		`, map[string]any{"uuid": uuid, "tenant_id": tenantID})
	})
	return wrapUpstream(err)
}

func (d *Neo4jDriver) GetEdgesForNode(ctx context.Context, nodeUUID, tenantID string) ([]*types.Edge, error) {
	return d.collectEdges(ctx, `
		MATCH (s)-[e {tenant_id: $tenant_id}]->(t)
		WHERE s.uuid = $uuid OR t.uuid = $uuid
		RETURN e, type(e) AS edge_type, s.uuid AS source_uuid, t.uuid AS target_uuid
	`, map[string]any{"uuid": nodeUUID, "tenant_id": tenantID})
}

func (d *Neo4jDriver) GetEdgesByType(ctx context.Context, tenantID string, t types.EdgeType) ([]*types.Edge, error) {
	query := fmt.Sprintf(`
		MATCH (s)-[e:%s {tenant_id: $tenant_id}]->(t)
		RETURN e, type(e) AS edge_type, s.uuid AS source_uuid, t.uuid AS target_uuid
	`, string(t))
	return d.collectEdges(ctx, query, map[string]any{"tenant_id": tenantID})
}

func (d *Neo4jDriver) GetEdgeBetween(ctx context.Context, t types.EdgeType, sourceUUID, targetUUID, tenantID string) (*types.Edge, error) {
	query := fmt.Sprintf(`
		MATCH (s {uuid: $source_uuid})-[e:%s {tenant_id: $tenant_id}]->(t {uuid: $target_uuid})
		RETURN e, type(e) AS edge_type, s.uuid AS source_uuid, t.uuid AS target_uuid
	`, string(t))
	edges, err := d.collectEdges(ctx, query, map[string]any{
		"source_uuid": sourceUUID,
		"target_uuid": targetUUID,
		"tenant_id":   tenantID,
	})
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, &types.NotFoundError{Kind: "edge", ID: sourceUUID + "->" + targetUUID}
	}
	return edges[0], nil
}

func (d *Neo4jDriver) GetFindings(ctx context.Context, tenantID string, filter FindingFilter) ([]*types.Node, error) {
	conditions := []string{"n.tenant_id = $tenant_id"}
	params := map[string]any{"tenant_id": tenantID}

	if filter.Domain != "" {
		conditions = append(conditions, "n.domain = $domain")
		params["domain"] = string(filter.Domain)
	}
	if filter.Status != "" {
		conditions = append(conditions, "n.status = $status")
		params["status"] = string(filter.Status)
	}
	if filter.ExcludeRejected {
		conditions = append(conditions, "n.status <> $rejected")
		params["rejected"] = string(types.FindingStatusRejected)
	}
	if filter.CurrentOnly {
		conditions = append(conditions, "n.invalid_at IS NULL")
	}
	if filter.Topic != "" {
		conditions = append(conditions, "(toLower(n.content) CONTAINS toLower($topic) OR toLower(n.name) CONTAINS toLower($topic))")
		params["topic"] = filter.Topic
	}

	query := fmt.Sprintf(`
		MATCH (n:Finding)
		WHERE %s
		RETURN n
		ORDER BY n.valid_at DESC, n.uuid ASC
	`, strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = filter.Limit
	}
	return d.collectNodes(ctx, query, params)
}

func (d *Neo4jDriver) GetEpisodeByContentHash(ctx context.Context, tenantID, hash string) (*types.Node, error) {
	nodes, err := d.collectNodes(ctx, `
		MATCH (n:Episode {tenant_id: $tenant_id, content_hash: $hash})
		RETURN n
		LIMIT 1
	`, map[string]any{"tenant_id": tenantID, "hash": hash})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, &types.NotFoundError{Kind: "episode", ID: hash}
	}
	return nodes[0], nil
}

func (d *Neo4jDriver) GetEpisodes(ctx context.Context, tenantID string, limit int) ([]*types.Node, error) {
	if limit <= 0 {
		limit = 50
	}
	return d.collectNodes(ctx, `
		MATCH (n:Episode {tenant_id: $tenant_id})
		RETURN n
		ORDER BY n.created_at DESC
		LIMIT $limit
	`, map[string]any{"tenant_id": tenantID, "limit": limit})
}

func (d *Neo4jDriver) SearchNodesByEmbedding(ctx context.Context, embedding []float32, tenantID string, limit int) ([]*types.Node, error) {
	vector := make([]float64, len(embedding))
	for i, v := range embedding {
		vector[i] = float64(v)
	}
	return d.collectNodes(ctx, `
		CALL db.index.vector.queryNodes('node_embedding', $k, $vector)
		YIELD node AS n, score
		WHERE n.tenant_id = $tenant_id
		RETURN n
		ORDER BY score DESC
	`, map[string]any{"k": limit, "vector": vector, "tenant_id": tenantID})
}

func (d *Neo4jDriver) SearchNodesByText(ctx context.Context, query, tenantID string, limit int) ([]*types.Node, error) {
	return d.collectNodes(ctx, `
		CALL db.index.fulltext.queryNodes('node_content', $query)
		YIELD node AS n, score
		WHERE n.tenant_id = $tenant_id
		RETURN n
		ORDER BY score DESC
		LIMIT $limit
	`, map[string]any{"query": fulltextEscape(query), "tenant_id": tenantID, "limit": limit})
}

func (d *Neo4jDriver) GetNeighbors(ctx context.Context, originUUIDs []string, tenantID string, maxDistance int) ([]*types.Node, error) {
	if len(originUUIDs) == 0 {
		return nil, nil
	}
	if maxDistance <= 0 {
		maxDistance = 1
	}
	query := fmt.Sprintf(`
		MATCH (origin {tenant_id: $tenant_id})
		WHERE origin.uuid IN $uuids
		MATCH (origin)-[*1..%d]-(n {tenant_id: $tenant_id})
		WHERE NOT n.uuid IN $uuids
		RETURN DISTINCT n
	`, maxDistance)
	return d.collectNodes(ctx, query, map[string]any{"uuids": originUUIDs, "tenant_id": tenantID})
}

func (d *Neo4jDriver) UpsertContradiction(ctx context.Context, c *types.Contradiction) error {
	if c.Uuid == "" {
		return types.ErrEmptyUUID
	}
	session := d.session(ctx)
	defer session.Close(ctx)

	props := map[string]any{
		"tenant_id":   c.TenantID,
		"finding_a":   c.FindingA,
		"finding_b":   c.FindingB,
		"confidence":  c.Confidence,
		"reason":      c.Reason,
		"status":      string(c.Status),
		"detected_at": c.DetectedAt,
		"pair_key":    c.PairKey(),
	}
	if c.ResolvedAt != nil {
		props["resolved_at"] = *c.ResolvedAt
	}
	if c.ResolvedNote != "" {
		props["resolved_note"] = c.ResolvedNote
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (c:ContradictionRecord {uuid: $uuid})
			SET c += $props
		`, map[string]any{"uuid": c.Uuid, "props": props})
	})
	return wrapUpstream(err)
}

func (d *Neo4jDriver) GetContradiction(ctx context.Context, uuid, tenantID string) (*types.Contradiction, error) {
	records, err := d.collectRecords(ctx, `
		MATCH (c:ContradictionRecord {uuid: $uuid, tenant_id: $tenant_id})
		RETURN c
	`, map[string]any{"uuid": uuid, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &types.NotFoundError{Kind: "contradiction", ID: uuid}
	}
	value, _ := records[0].Get("c")
	dbNode, ok := value.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected contradiction type %T", value)
	}
	return contradictionFromProps(dbNode.Props), nil
}

func (d *Neo4jDriver) ListContradictions(ctx context.Context, tenantID string, status types.ContradictionStatus) ([]*types.Contradiction, error) {
	query := `
		MATCH (c:ContradictionRecord {tenant_id: $tenant_id})
		RETURN c
		ORDER BY c.detected_at ASC
	`
	params := map[string]any{"tenant_id": tenantID}
	if status != "" {
		query = `
			MATCH (c:ContradictionRecord {tenant_id: $tenant_id, status: $status})
			RETURN c
			ORDER BY c.detected_at ASC
		`
		params["status"] = string(status)
	}
	records, err := d.collectRecords(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Contradiction, 0, len(records))
	for _, rec := range records {
		value, _ := rec.Get("c")
		if dbNode, ok := value.(dbtype.Node); ok {
			out = append(out, contradictionFromProps(dbNode.Props))
		}
	}
	return out, nil
}

func (d *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := d.session(ctx)
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT entity_uuid IF NOT EXISTS FOR (n:Entity) REQUIRE n.uuid IS UNIQUE",
		"CREATE CONSTRAINT finding_uuid IF NOT EXISTS FOR (n:Finding) REQUIRE n.uuid IS UNIQUE",
		"CREATE CONSTRAINT episode_uuid IF NOT EXISTS FOR (n:Episode) REQUIRE n.uuid IS UNIQUE",
		"CREATE INDEX entity_tenant IF NOT EXISTS FOR (n:Entity) ON (n.tenant_id)",
		"CREATE INDEX finding_tenant IF NOT EXISTS FOR (n:Finding) ON (n.tenant_id, n.domain)",
		"CREATE INDEX episode_hash IF NOT EXISTS FOR (n:Episode) ON (n.tenant_id, n.content_hash)",
		"CREATE FULLTEXT INDEX node_content IF NOT EXISTS FOR (n:Entity|Finding) ON EACH [n.name, n.content]",
		"CREATE VECTOR INDEX node_embedding IF NOT EXISTS FOR (n:Finding) ON n.embedding " +
			"OPTIONS {indexConfig: {`vector.dimensions`: 1536, `vector.similarity_function`: 'cosine'}}",
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return wrapUpstream(err)
		}
	}
	return nil
}

func (d *Neo4jDriver) GetStats(ctx context.Context, tenantID string) (*GraphStats, error) {
	records, err := d.collectRecords(ctx, `
		MATCH (n {tenant_id: $tenant_id})
		WITH count(n) AS nodes
		OPTIONAL MATCH ({tenant_id: $tenant_id})-[e {tenant_id: $tenant_id}]->()
		RETURN nodes, count(e) AS edges
	`, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	stats := &GraphStats{
		NodesByType: make(map[string]int64),
		EdgesByType: make(map[string]int64),
		LastUpdated: time.Now().UTC(),
	}
	if len(records) > 0 {
		if v, ok := records[0].Get("nodes"); ok {
			if n, ok := v.(int64); ok {
				stats.NodeCount = n
			}
		}
		if v, ok := records[0].Get("edges"); ok {
			if n, ok := v.(int64); ok {
				stats.EdgeCount = n
			}
		}
	}
	return stats, nil
}

func (d *Neo4jDriver) collectRecords(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	session := d.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, wrapUpstream(err)
	}
	return result.([]*db.Record), nil
}

func (d *Neo4jDriver) collectNodes(ctx context.Context, query string, params map[string]any) ([]*types.Node, error) {
	records, err := d.collectRecords(ctx, query, params)
	if err != nil {
		return nil, err
	}
	nodes := make([]*types.Node, 0, len(records))
	for _, rec := range records {
		value, _ := rec.Get("n")
		if dbNode, ok := value.(dbtype.Node); ok {
			nodes = append(nodes, nodeFromDBNode(dbNode))
		}
	}
	return nodes, nil
}

func (d *Neo4jDriver) collectEdges(ctx context.Context, query string, params map[string]any) ([]*types.Edge, error) {
	records, err := d.collectRecords(ctx, query, params)
	if err != nil {
		return nil, err
	}
	edges := make([]*types.Edge, 0, len(records))
	for _, rec := range records {
		edge, err := edgeFromRecord(rec)
		if err != nil {
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func nodeProps(node *types.Node) map[string]any {
	props := map[string]any{
		"name":      node.Name,
		"type":      string(node.Type),
		"tenant_id": node.TenantID,
	}
	if node.EntityType != "" {
		props["entity_type"] = string(node.EntityType)
	}
	if node.Role != "" {
		props["role"] = string(node.Role)
	}
	if len(node.Aliases) > 0 {
		props["aliases"] = node.Aliases
	}
	if node.Summary != "" {
		props["summary"] = node.Summary
	}
	if node.Content != "" {
		props["content"] = node.Content
	}
	if node.Confidence > 0 {
		props["confidence"] = node.Confidence
	}
	if node.SourceChannel != "" {
		props["source_channel"] = string(node.SourceChannel)
	}
	if node.FindingType != "" {
		props["finding_type"] = node.FindingType
	}
	if node.Domain != "" {
		props["domain"] = string(node.Domain)
	}
	if node.Status != "" {
		props["status"] = string(node.Status)
	}
	if node.DateReferenced != "" {
		props["date_referenced"] = node.DateReferenced
	}
	if node.ChunkID != "" {
		props["chunk_id"] = node.ChunkID
	}
	if !node.ValidAt.IsZero() {
		props["valid_at"] = node.ValidAt
	}
	if node.InvalidAt != nil {
		props["invalid_at"] = *node.InvalidAt
	}
	if node.ContentHash != "" {
		props["content_hash"] = node.ContentHash
	}
	if len(node.Embedding) > 0 {
		props["embedding"] = toFloat64Slice(node.Embedding)
	}
	if len(node.NameEmbedding) > 0 {
		props["name_embedding"] = toFloat64Slice(node.NameEmbedding)
	}
	if len(node.Attributes) > 0 {
		if raw, err := json.Marshal(node.Attributes); err == nil {
			props["attributes"] = string(raw)
		}
	}
	return props
}

func nodeFromDBNode(dbNode dbtype.Node) *types.Node {
	props := dbNode.Props
	node := &types.Node{
		Type: nodeTypeForLabels(dbNode.Labels),
	}
	if v, ok := props["uuid"].(string); ok {
		node.Uuid = v
	}
	if v, ok := props["name"].(string); ok {
		node.Name = v
	}
	if v, ok := props["tenant_id"].(string); ok {
		node.TenantID = v
	}
	if v, ok := props["entity_type"].(string); ok {
		node.EntityType = types.EntityType(v)
	}
	if v, ok := props["role"].(string); ok {
		node.Role = types.CompanyRole(v)
	}
	if v, ok := props["aliases"].([]any); ok {
		for _, a := range v {
			if s, ok := a.(string); ok {
				node.Aliases = append(node.Aliases, s)
			}
		}
	}
	if v, ok := props["summary"].(string); ok {
		node.Summary = v
	}
	if v, ok := props["content"].(string); ok {
		node.Content = v
	}
	if v, ok := props["confidence"].(float64); ok {
		node.Confidence = v
	}
	if v, ok := props["source_channel"].(string); ok {
		node.SourceChannel = types.SourceChannel(v)
	}
	if v, ok := props["finding_type"].(string); ok {
		node.FindingType = v
	}
	if v, ok := props["domain"].(string); ok {
		node.Domain = types.Domain(v)
	}
	if v, ok := props["status"].(string); ok {
		node.Status = types.FindingStatus(v)
	}
	if v, ok := props["date_referenced"].(string); ok {
		node.DateReferenced = v
	}
	if v, ok := props["chunk_id"].(string); ok {
		node.ChunkID = v
	}
	if v, ok := props["content_hash"].(string); ok {
		node.ContentHash = v
	}
	if v, ok := props["valid_at"].(time.Time); ok {
		node.ValidAt = v
	}
	if v, ok := props["invalid_at"].(time.Time); ok {
		node.InvalidAt = &v
	}
	if v, ok := props["created_at"].(time.Time); ok {
		node.CreatedAt = v
	}
	if v, ok := props["updated_at"].(time.Time); ok {
		node.UpdatedAt = v
	}
	if v, ok := props["embedding"].([]any); ok {
		node.Embedding = toFloat32Slice(v)
	}
	if v, ok := props["name_embedding"].([]any); ok {
		node.NameEmbedding = toFloat32Slice(v)
	}
	if v, ok := props["attributes"].(string); ok && v != "" {
		var attrs map[string]any
		if err := json.Unmarshal([]byte(v), &attrs); err == nil {
			node.Attributes = attrs
		}
	}
	return node
}

func edgeProps(edge *types.Edge) map[string]any {
	props := map[string]any{
		"tenant_id": edge.TenantID,
	}
	if edge.Fact != "" {
		props["fact"] = edge.Fact
	}
	if len(edge.FactEmbedding) > 0 {
		props["fact_embedding"] = toFloat64Slice(edge.FactEmbedding)
	}
	if !edge.ValidAt.IsZero() {
		props["valid_at"] = edge.ValidAt
	}
	if edge.InvalidAt != nil {
		props["invalid_at"] = *edge.InvalidAt
	}
	if len(edge.Attributes) > 0 {
		if raw, err := json.Marshal(edge.Attributes); err == nil {
			props["attributes"] = string(raw)
		}
	}
	return props
}

func edgeFromRecord(rec *db.Record) (*types.Edge, error) {
	value, _ := rec.Get("e")
	rel, ok := value.(dbtype.Relationship)
	if !ok {
		return nil, fmt.Errorf("unexpected edge type %T", value)
	}
	edge := &types.Edge{}
	if v, ok := rec.Get("edge_type"); ok {
		if s, ok := v.(string); ok {
			edge.Type = types.EdgeType(s)
		}
	}
	if v, ok := rec.Get("source_uuid"); ok {
		if s, ok := v.(string); ok {
			edge.SourceNodeID = s
		}
	}
	if v, ok := rec.Get("target_uuid"); ok {
		if s, ok := v.(string); ok {
			edge.TargetNodeID = s
		}
	}
	props := rel.Props
	if v, ok := props["uuid"].(string); ok {
		edge.Uuid = v
	}
	if v, ok := props["tenant_id"].(string); ok {
		edge.TenantID = v
	}
	if v, ok := props["fact"].(string); ok {
		edge.Fact = v
	}
	if v, ok := props["fact_embedding"].([]any); ok {
		edge.FactEmbedding = toFloat32Slice(v)
	}
	if v, ok := props["valid_at"].(time.Time); ok {
		edge.ValidAt = v
	}
	if v, ok := props["invalid_at"].(time.Time); ok {
		edge.InvalidAt = &v
	}
	if v, ok := props["created_at"].(time.Time); ok {
		edge.CreatedAt = v
	}
	if v, ok := props["updated_at"].(time.Time); ok {
		edge.UpdatedAt = v
	}
	if v, ok := props["attributes"].(string); ok && v != "" {
		var attrs map[string]any
		if err := json.Unmarshal([]byte(v), &attrs); err == nil {
			edge.Attributes = attrs
		}
	}
	return edge, nil
}

func contradictionFromProps(props map[string]any) *types.Contradiction {
	c := &types.Contradiction{}
	if v, ok := props["uuid"].(string); ok {
		c.Uuid = v
	}
	if v, ok := props["tenant_id"].(string); ok {
		c.TenantID = v
	}
	if v, ok := props["finding_a"].(string); ok {
		c.FindingA = v
	}
	if v, ok := props["finding_b"].(string); ok {
		c.FindingB = v
	}
	if v, ok := props["confidence"].(float64); ok {
		c.Confidence = v
	}
	if v, ok := props["reason"].(string); ok {
		c.Reason = v
	}
	if v, ok := props["status"].(string); ok {
		c.Status = types.ContradictionStatus(v)
	}
	if v, ok := props["detected_at"].(time.Time); ok {
		c.DetectedAt = v
	}
	if v, ok := props["resolved_at"].(time.Time); ok {
		c.ResolvedAt = &v
	}
	if v, ok := props["resolved_note"].(string); ok {
		c.ResolvedNote = v
	}
	return c
}

func toFloat64Slice(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func toFloat32Slice(in []any) []float32 {
	out := make([]float32, 0, len(in))
	for _, v := range in {
		if f, ok := v.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

// fulltextEscape neutralizes Lucene query syntax in user-supplied text.
func fulltextEscape(q string) string {
	replacer := strings.NewReplacer(
		`+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
		`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
		`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `\`, `\\`, `/`, `\/`,
	)
	return replacer.Replace(q)
}
