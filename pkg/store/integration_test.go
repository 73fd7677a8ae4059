//go:build integration
// +build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/sentinel/pkg/store"
	"github.com/soundprediction/sentinel/pkg/types"
)

// Integration tests require a reachable bolt server and are marked with a
// build tag. Run with:
//
//	GRAPH_URI=bolt://localhost:7687 GRAPH_USER=neo4j GRAPH_PASSWORD=... \
//	  go test -tags=integration ./pkg/store
//
// Each test clears the target database; never point them at real data.

func integrationStore(t *testing.T) *store.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	uri := os.Getenv("GRAPH_URI")
	if uri == "" {
		t.Skip("GRAPH_URI not set")
	}

	s, err := store.New(uri, os.Getenv("GRAPH_USER"), os.Getenv("GRAPH_PASSWORD"), os.Getenv("GRAPH_DATABASE"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.VerifyConnectivity(ctx))
	require.NoError(t, s.CreateIndices(ctx))
	_, err = s.ClearAll(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = s.ClearAll(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func ceoBundle(title string) *types.Bundle {
	return &types.Bundle{
		Nodes: []*types.Node{
			{ID: "openai", Properties: map[string]any{"name": "OpenAI"}},
			{ID: "sam_altman", Properties: map[string]any{"name": "Sam Altman"}},
		},
		Edges: []*types.Edge{
			{
				Source:     "openai",
				Target:     "sam_altman",
				Relation:   "HAS_CEO",
				Properties: map[string]any{"title": title},
				SourceURL:  "https://example.com/about",
				Confidence: 0.9,
			},
		},
	}
}

func countClosedEdges(t *testing.T, s *store.Store) int {
	t.Helper()
	rows, err := s.Query(context.Background(), `
		MATCH ()-[r]->() WHERE r.valid_to IS NOT NULL RETURN count(r) AS closed
	`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return int(rows[0]["closed"].(int64))
}

func TestIntegrationUpsertBundleLifecycle(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	stats, err := s.UpsertBundle(ctx, ceoBundle("CEO"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodesCreated)
	assert.Equal(t, 1, stats.EdgesCreated)
	assert.Equal(t, 0, stats.EdgesVerified)

	// The identical assertion again is verified in place, not duplicated.
	stats, err = s.UpsertBundle(ctx, ceoBundle("CEO"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NodesCreated)
	assert.Equal(t, 0, stats.EdgesCreated)
	assert.Equal(t, 1, stats.EdgesVerified)
	assert.Equal(t, 0, stats.EdgesInvalidated)

	rows, err := s.Query(ctx, `
		MATCH (:Entity {id: "openai"})-[r:HAS_CEO]->(:Entity {id: "sam_altman"})
		WHERE r.valid_to IS NULL
		RETURN r.verification_count AS verifications
	`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1, "at most one live edge per endpoints and relation")
	assert.EqualValues(t, 2, rows[0]["verifications"])

	snap, err := s.SnapshotAt(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, snap.Links, 1)
	assert.Nil(t, snap.Links[0].ValidTo)
	assert.Len(t, snap.Nodes, 2)
}

func TestIntegrationUpsertBundleSupersedesChangedFact(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	_, err := s.UpsertBundle(ctx, ceoBundle("CEO"))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	between := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)

	stats, err := s.UpsertBundle(ctx, ceoBundle("Chief Executive"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EdgesInvalidated)
	assert.Equal(t, 1, stats.EdgesCreated)

	// The live view carries only the new assertion.
	rows, err := s.Query(ctx, `
		MATCH ()-[r:HAS_CEO]->()
		WHERE r.valid_to IS NULL
		RETURN r.properties AS properties
	`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0]["properties"], "Chief Executive")

	// Time travel to before the change sees the superseded edge, closed
	// after the asked-for instant.
	snap, err := s.SnapshotAt(ctx, between)
	require.NoError(t, err)
	require.Len(t, snap.Links, 1)
	require.NotNil(t, snap.Links[0].ValidTo)
	assert.True(t, snap.Links[0].ValidTo.After(between))

	again, err := s.SnapshotAt(ctx, between)
	require.NoError(t, err)
	assert.Equal(t, snap.Links, again.Links, "snapshots at a fixed instant are deterministic")

	// Closed history is immutable: re-asserting the original content opens
	// a new edge rather than reviving the closed one.
	closedBefore := countClosedEdges(t, s)
	stats, err = s.UpsertBundle(ctx, ceoBundle("CEO"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EdgesCreated)
	assert.Equal(t, 1, stats.EdgesInvalidated)
	assert.Equal(t, 0, stats.EdgesVerified)
	assert.Equal(t, closedBefore+1, countClosedEdges(t, s))

	rows, err = s.Query(ctx, `
		MATCH ()-[r:HAS_CEO]->()
		WHERE r.valid_to IS NOT NULL
		RETURN r.valid_from AS from, r.valid_to AS to
	`, nil)
	require.NoError(t, err)
	for _, row := range rows {
		assert.LessOrEqual(t, row["from"], row["to"], "closed intervals stay ordered")
	}
}

func TestIntegrationUpsertBundleInBundleArrivalOrder(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	bundle := &types.Bundle{
		Edges: []*types.Edge{
			{
				Source: "acme", Target: "widget", Relation: "SELLS",
				Properties: map[string]any{"price": "9.99"},
				SourceURL:  "https://acme.example", Confidence: 0.8,
			},
			{
				Source: "acme", Target: "widget", Relation: "SELLS",
				Properties: map[string]any{"price": "12.49"},
				SourceURL:  "https://acme.example", Confidence: 0.8,
			},
		},
	}

	stats, err := s.UpsertBundle(ctx, bundle)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodesCreated, "edge endpoints are synthesized once")
	assert.Equal(t, 2, stats.EdgesCreated)
	assert.Equal(t, 1, stats.EdgesInvalidated, "the later assertion supersedes the earlier one")

	rows, err := s.Query(ctx, `
		MATCH ()-[r:SELLS]->()
		WHERE r.valid_to IS NULL
		RETURN r.properties AS properties
	`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0]["properties"], "12.49")
}
