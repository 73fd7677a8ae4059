package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/sentinel/pkg/types"
)

// UpsertBundle applies a bundle of entities and edges in one transaction.
// Every edge in the bundle is resolved against the live graph in arrival
// order using its content hash:
//
//   - same hash already live: the edge is re-verified (last_verified bumped,
//     verification_count incremented, source_url refreshed)
//   - a different edge is live between the same endpoints with the same
//     relation: that edge is closed at now and the new one created
//   - otherwise the edge is created live
//
// Edges referencing entities absent from the bundle get those entities
// created with default properties. All timestamps within one call share a
// single now.
func (s *Store) UpsertBundle(ctx context.Context, bundle *types.Bundle) (*types.UpsertStats, error) {
	if bundle.IsEmpty() {
		return &types.UpsertStats{}, nil
	}

	nodes, labeled, err := collectNodes(bundle)
	if err != nil {
		return nil, err
	}

	type resolvedEdge struct {
		edge     *types.Edge
		relation string
		hash     string
	}
	edges := make([]resolvedEdge, 0, len(bundle.Edges))
	for _, edge := range bundle.Edges {
		if err := edge.Validate(); err != nil {
			return nil, NewConstraintError("edge", err.Error())
		}
		rel, err := relationType(edge.Relation)
		if err != nil {
			return nil, err
		}
		normalized := *edge
		normalized.Relation = rel
		edges = append(edges, resolvedEdge{edge: edge, relation: rel, hash: normalized.ComputeHash()})
	}

	now := time.Now().UTC()
	nowStr := now.Format(timeFormat)

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		stats := &types.UpsertStats{}

		before, err := countEntities(ctx, tx)
		if err != nil {
			return nil, err
		}

		_, err = tx.Run(ctx, `
			UNWIND $nodes AS node
			MERGE (n:Entity {id: node.id})
			SET n += node.properties
		`, map[string]any{"nodes": nodes})
		if err != nil {
			return nil, err
		}

		// Cypher cannot parameterize labels, so secondary labels are set
		// one node at a time after the bulk merge.
		for id, label := range labeled {
			_, err := tx.Run(ctx, fmt.Sprintf(`
				MATCH (n:Entity {id: $id})
				SET n:%s
			`, label), map[string]any{"id": id})
			if err != nil {
				return nil, err
			}
		}

		after, err := countEntities(ctx, tx)
		if err != nil {
			return nil, err
		}
		stats.NodesCreated = int(after - before)

		for _, re := range edges {
			verified, err := verifyLiveEdge(ctx, tx, re.relation, re.hash, re.edge, nowStr)
			if err != nil {
				return nil, err
			}
			if verified {
				stats.EdgesVerified++
				continue
			}

			closed, err := closeLiveEdges(ctx, tx, re.relation, re.edge.Source, re.edge.Target, nowStr)
			if err != nil {
				return nil, err
			}
			stats.EdgesInvalidated += int(closed)

			validFrom := nowStr
			if !re.edge.ValidFrom.IsZero() {
				validFrom = re.edge.ValidFrom.UTC().Format(timeFormat)
			}
			_, err = tx.Run(ctx, fmt.Sprintf(`
				MATCH (s:Entity {id: $source}), (t:Entity {id: $target})
				CREATE (s)-[r:%s {
					hash: $hash,
					valid_from: $valid_from,
					last_verified: $now,
					verification_count: 1,
					source_url: $source_url,
					confidence: $confidence,
					properties: $properties
				}]->(t)
			`, re.relation), map[string]any{
				"source":     re.edge.Source,
				"target":     re.edge.Target,
				"hash":       re.hash,
				"valid_from": validFrom,
				"now":        nowStr,
				"source_url": re.edge.SourceURL,
				"confidence": re.edge.Confidence,
				"properties": types.CanonicalJSON(re.edge.Properties),
			})
			if err != nil {
				return nil, err
			}
			stats.EdgesCreated++
		}

		return stats, nil
	})
	if err != nil {
		return nil, NewQueryError("upsert bundle", err)
	}

	return result.(*types.UpsertStats), nil
}

// SnapshotAt returns the graph as it was asserted at time t: every edge with
// valid_from <= t and (valid_to absent or valid_to > t), plus the entities
// those edges touch. The zero time means now.
func (s *Store) SnapshotAt(ctx context.Context, t time.Time) (*types.Snapshot, error) {
	if t.IsZero() {
		t = time.Now()
	}
	at := t.UTC().Format(timeFormat)

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Entity)-[r]->(t:Entity)
			WHERE r.valid_from <= $at AND (r.valid_to IS NULL OR r.valid_to > $at)
			RETURN s.id AS source_id, coalesce(s.name, s.id) AS source_name,
			       t.id AS target_id, coalesce(t.name, t.id) AS target_name,
			       type(r) AS relation, r.confidence AS confidence,
			       r.source_url AS source_url,
			       r.valid_from AS valid_from, r.valid_to AS valid_to
			ORDER BY source_id, target_id, relation
		`, map[string]any{"at": at})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, NewQueryError("snapshot", err)
	}

	rows := make([]snapshotRow, 0)
	for _, record := range result.([]*db.Record) {
		rows = append(rows, snapshotRowFromRecord(record))
	}

	return buildSnapshot(rows, t.UTC()), nil
}

// FindStale returns the distinct source URLs whose live edges have all gone
// unverified for longer than the given number of days, oldest-neglected
// first. URLs with at least one recently verified live edge are not stale.
func (s *Store) FindStale(ctx context.Context, days int) ([]string, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timeFormat)

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (:Entity)-[r]->(:Entity)
			WHERE r.valid_to IS NULL AND r.source_url IS NOT NULL AND r.source_url <> ''
			WITH r.source_url AS url, max(r.last_verified) AS most_recent
			WHERE most_recent < $cutoff
			RETURN url
			ORDER BY most_recent, url
		`, map[string]any{"cutoff": cutoff})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, NewQueryError("find stale", err)
	}

	urls := make([]string, 0)
	for _, record := range result.([]*db.Record) {
		if v, ok := record.Get("url"); ok {
			urls = append(urls, asString(v))
		}
	}

	return urls, nil
}

// MarkVerified bumps last_verified and verification_count on every live edge
// sourced from the given URL. Returns the number of edges touched.
func (s *Store) MarkVerified(ctx context.Context, sourceURL string) (int64, error) {
	if sourceURL == "" {
		return 0, NewConstraintError("source_url", types.ErrEmptyURL.Error())
	}
	nowStr := time.Now().UTC().Format(timeFormat)

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (:Entity)-[r]->(:Entity)
			WHERE r.source_url = $url AND r.valid_to IS NULL
			SET r.last_verified = $now,
			    r.verification_count = r.verification_count + 1
			RETURN count(r) AS updated
		`, map[string]any{"url": sourceURL, "now": nowStr})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		updated, _ := record.Get("updated")
		return asInt64(updated), nil
	})
	if err != nil {
		return 0, NewQueryError("mark verified", err)
	}

	return result.(int64), nil
}

// Invalidate closes the live edge between source and target with the given
// relation by setting valid_to to the given instant (zero means now). The
// edge stays queryable through historical snapshots. Returns the number of
// edges closed.
func (s *Store) Invalidate(ctx context.Context, source, relation, target string, at time.Time) (int64, error) {
	rel, err := relationType(relation)
	if err != nil {
		return 0, err
	}
	if at.IsZero() {
		at = time.Now()
	}
	nowStr := at.UTC().Format(timeFormat)

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return closeLiveEdges(ctx, tx, rel, source, target, nowStr)
	})
	if err != nil {
		return 0, NewQueryError("invalidate", err)
	}

	return result.(int64), nil
}

func countEntities(ctx context.Context, tx neo4j.ManagedTransaction) (int64, error) {
	res, err := tx.Run(ctx, `MATCH (n:Entity) RETURN count(n) AS total`, nil)
	if err != nil {
		return 0, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	total, _ := record.Get("total")
	return asInt64(total), nil
}

func verifyLiveEdge(ctx context.Context, tx neo4j.ManagedTransaction, relation, hash string, edge *types.Edge, nowStr string) (bool, error) {
	res, err := tx.Run(ctx, fmt.Sprintf(`
		MATCH (s:Entity {id: $source})-[r:%s {hash: $hash}]->(t:Entity {id: $target})
		WHERE r.valid_to IS NULL
		SET r.last_verified = $now,
		    r.verification_count = r.verification_count + 1,
		    r.source_url = $source_url
		RETURN count(r) AS updated
	`, relation), map[string]any{
		"source":     edge.Source,
		"target":     edge.Target,
		"hash":       hash,
		"now":        nowStr,
		"source_url": edge.SourceURL,
	})
	if err != nil {
		return false, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return false, err
	}
	updated, _ := record.Get("updated")
	return asInt64(updated) > 0, nil
}

func closeLiveEdges(ctx context.Context, tx neo4j.ManagedTransaction, relation, source, target, nowStr string) (int64, error) {
	res, err := tx.Run(ctx, fmt.Sprintf(`
		MATCH (s:Entity {id: $source})-[r:%s]->(t:Entity {id: $target})
		WHERE r.valid_to IS NULL
		SET r.valid_to = $now
		RETURN count(r) AS closed
	`, relation), map[string]any{
		"source": source,
		"target": target,
		"now":    nowStr,
	})
	if err != nil {
		return 0, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	closed, _ := record.Get("closed")
	return asInt64(closed), nil
}

// collectNodes flattens bundle nodes plus implicit edge endpoints into
// UNWIND-ready parameter maps and gathers secondary labels keyed by node id.
// Explicit nodes keep their arrival order so repeated ids merge properties
// last-writer-wins; implicit endpoints are added once, with defaults, only
// for ids the bundle never names.
func collectNodes(bundle *types.Bundle) ([]map[string]any, map[string]string, error) {
	seen := make(map[string]bool)
	params := make([]map[string]any, 0, len(bundle.Nodes))
	labeled := make(map[string]string)

	for _, node := range bundle.Nodes {
		if err := node.Validate(); err != nil {
			return nil, nil, NewConstraintError("node", err.Error())
		}
		node = node.WithDefaults()
		label, err := secondaryLabel(node.Label)
		if err != nil {
			return nil, nil, err
		}
		if label != "" {
			labeled[node.ID] = label
		}
		seen[node.ID] = true
		params = append(params, map[string]any{
			"id":         node.ID,
			"properties": node.Properties,
		})
	}

	for _, edge := range bundle.Edges {
		for _, id := range []string{edge.Source, edge.Target} {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			implicit := (&types.Node{ID: id}).WithDefaults()
			params = append(params, map[string]any{
				"id":         implicit.ID,
				"properties": implicit.Properties,
			})
		}
	}

	return params, labeled, nil
}

type snapshotRow struct {
	sourceID   string
	sourceName string
	targetID   string
	targetName string
	relation   string
	confidence float64
	sourceURL  string
	validFrom  time.Time
	validTo    *time.Time
}

func snapshotRowFromRecord(record *db.Record) snapshotRow {
	row := snapshotRow{}
	if v, ok := record.Get("source_id"); ok {
		row.sourceID = asString(v)
	}
	if v, ok := record.Get("source_name"); ok {
		row.sourceName = asString(v)
	}
	if v, ok := record.Get("target_id"); ok {
		row.targetID = asString(v)
	}
	if v, ok := record.Get("target_name"); ok {
		row.targetName = asString(v)
	}
	if v, ok := record.Get("relation"); ok {
		row.relation = asString(v)
	}
	if v, ok := record.Get("confidence"); ok {
		row.confidence = asFloat64(v)
	}
	if v, ok := record.Get("source_url"); ok {
		row.sourceURL = asString(v)
	}
	if v, ok := record.Get("valid_from"); ok {
		if t, ok := asTime(v); ok {
			row.validFrom = t
		}
	}
	if v, ok := record.Get("valid_to"); ok {
		if t, ok := asTime(v); ok {
			row.validTo = &t
		}
	}
	return row
}

// buildSnapshot shapes edge rows into the node-link document the
// visualization layer consumes. Node weight is degree over the returned
// edges.
func buildSnapshot(rows []snapshotRow, at time.Time) *types.Snapshot {
	names := make(map[string]string)
	degree := make(map[string]int)
	links := make([]types.SnapshotLink, 0, len(rows))

	for _, row := range rows {
		names[row.sourceID] = row.sourceName
		names[row.targetID] = row.targetName
		degree[row.sourceID]++
		degree[row.targetID]++

		link := types.SnapshotLink{
			Source:     row.sourceID,
			Target:     row.targetID,
			Relation:   row.relation,
			Confidence: row.confidence,
			SourceURL:  row.sourceURL,
			ValidFrom:  row.validFrom,
			ValidTo:    row.validTo,
		}
		links = append(links, link)
	}

	ids := make([]string, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]types.SnapshotNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, types.SnapshotNode{
			ID:   id,
			Name: names[id],
			Val:  degree[id],
		})
	}

	return &types.Snapshot{
		Nodes: nodes,
		Links: links,
		Metadata: types.SnapshotMetadata{
			Timestamp: at,
			NodeCount: len(nodes),
			LinkCount: len(links),
		},
	}
}
