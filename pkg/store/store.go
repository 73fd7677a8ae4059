// Package store persists the bitemporal knowledge graph in a Neo4j-compatible
// database reachable over the bolt protocol.
//
// Entities are stored as nodes labeled Entity, keyed by their id property.
// Facts are stored as relationships whose type is the normalized relation
// name. Each relationship carries the bitemporal columns (valid_from,
// valid_to, last_verified, verification_count), its provenance (source_url,
// confidence) and a content hash that identifies the assertion independently
// of when or where it was observed. Timestamps are stored as RFC3339 strings
// in UTC with fixed-width milliseconds so they compare lexicographically.
//
// All methods are safe for concurrent use. Each call opens its own session
// against the configured database and closes it before returning.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/sentinel/pkg/types"
)

// timeFormat is RFC3339 with fixed-width milliseconds. The width matters:
// Cypher compares these properties as strings, and a close-then-replace
// within the same second must still leave a non-empty validity interval on
// the superseded edge.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// validRelation constrains relationship type names because Cypher cannot
// parameterize them; they are interpolated into query text.
var validRelation = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// validLabel constrains secondary node labels for the same reason.
var validLabel = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Store is a bitemporal graph store backed by Neo4j.
type Store struct {
	client   neo4j.DriverWithContext
	database string
}

// New creates a Store connected to the given bolt URI. The database defaults
// to "neo4j" when empty. The connection is established lazily; call
// VerifyConnectivity to check it eagerly.
func New(uri, username, password, database string) (*Store, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, NewConnectionError(uri, err.Error())
	}

	if database == "" {
		database = "neo4j"
	}

	return &Store{
		client:   client,
		database: database,
	}, nil
}

// VerifyConnectivity checks that the database is reachable and credentials
// are accepted.
func (s *Store) VerifyConnectivity(ctx context.Context) error {
	if err := s.client.VerifyConnectivity(ctx); err != nil {
		target := s.client.Target()
		return NewConnectionError(target.String(), err.Error())
	}
	return nil
}

// CreateIndices creates the indexes and constraints the store relies on.
// Errors caused by an index already existing are ignored so the call is safe
// to repeat on every startup.
func (s *Store) CreateIndices(ctx context.Context) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE",
		"CREATE CONSTRAINT document_url IF NOT EXISTS FOR (d:Document) REQUIRE d.url IS UNIQUE",
		"CREATE INDEX entity_name IF NOT EXISTS FOR (n:Entity) ON (n.name)",
	}

	for _, stmt := range statements {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, nil)
			return nil, err
		})
		if err != nil {
			// Older servers report duplicates instead of honoring IF NOT EXISTS.
			if strings.Contains(err.Error(), "already exists") ||
				strings.Contains(err.Error(), "An equivalent") {
				continue
			}
			return NewQueryError("create indices", err)
		}
	}

	return nil
}

// Stats returns entity and live edge counts for the whole graph.
func (s *Store) Stats(ctx context.Context) (*types.GraphStats, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodeRes, err := tx.Run(ctx, `MATCH (n:Entity) RETURN count(n) AS total`, nil)
		if err != nil {
			return nil, err
		}
		nodeRecord, err := nodeRes.Single(ctx)
		if err != nil {
			return nil, err
		}

		edgeRes, err := tx.Run(ctx, `
			MATCH (:Entity)-[r]->(:Entity)
			WHERE r.valid_to IS NULL
			RETURN count(r) AS total
		`, nil)
		if err != nil {
			return nil, err
		}
		edgeRecord, err := edgeRes.Single(ctx)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"nodes": nodeRecord,
			"edges": edgeRecord,
		}, nil
	})
	if err != nil {
		return nil, NewQueryError("stats", err)
	}

	data := result.(map[string]any)
	stats := &types.GraphStats{}
	if v, ok := data["nodes"].(*db.Record).Get("total"); ok {
		stats.TotalNodes = asInt64(v)
	}
	if v, ok := data["edges"].(*db.Record).Get("total"); ok {
		stats.TotalEdges = asInt64(v)
	}

	return stats, nil
}

// Query runs a read-only Cypher statement and returns one map per record.
// It exists for answer generation, which assembles its own match patterns;
// ingestion goes through UpsertBundle.
func (s *Store) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, NewQueryError("query", err)
	}

	records := result.([]*db.Record)
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			value, _ := record.Get(key)
			row[key] = value
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ClearAll removes every node and relationship from the database and
// returns the number of nodes deleted.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n) DETACH DELETE n RETURN count(n) AS removed`, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		removed, _ := record.Get("removed")
		return asInt64(removed), nil
	})
	if err != nil {
		return 0, NewQueryError("clear all", err)
	}

	return result.(int64), nil
}

// Close releases the underlying driver and its connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// relationType validates a normalized relation name for use as a
// relationship type in interpolated Cypher.
func relationType(relation string) (string, error) {
	normalized := types.NormalizeRelation(relation)
	if !validRelation.MatchString(normalized) {
		return "", NewConstraintError("relation", fmt.Sprintf("%q cannot be used as a relationship type", relation))
	}
	return normalized, nil
}

// secondaryLabel validates an extra node label beyond Entity. Returns an
// empty string when the label adds nothing.
func secondaryLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" || label == "Entity" {
		return "", nil
	}
	if !validLabel.MatchString(label) {
		return "", NewConstraintError("label", fmt.Sprintf("%q cannot be used as a node label", label))
	}
	return label, nil
}
