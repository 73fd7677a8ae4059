package store

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/sentinel/pkg/types"
)

// GetDocumentState returns the recorded content hash and check time for a
// source URL, or nil when the URL has never been processed.
func (s *Store) GetDocumentState(ctx context.Context, sourceURL string) (*types.DocumentState, error) {
	if sourceURL == "" {
		return nil, NewConstraintError("source_url", types.ErrEmptyURL.Error())
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Document {url: $url})
			RETURN d.content_hash AS content_hash, d.last_checked AS last_checked
		`, map[string]any{"url": sourceURL})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, NewQueryError("get document state", err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, nil
	}

	state := &types.DocumentState{SourceURL: sourceURL}
	if v, ok := records[0].Get("content_hash"); ok {
		state.ContentHash = asString(v)
	}
	if v, ok := records[0].Get("last_checked"); ok {
		if t, ok := asTime(v); ok {
			state.LastChecked = t
		}
	}

	return state, nil
}

// SetDocumentState records the content hash observed for a source URL and
// stamps the check time with now.
func (s *Store) SetDocumentState(ctx context.Context, sourceURL, contentHash string) error {
	if sourceURL == "" {
		return NewConstraintError("source_url", types.ErrEmptyURL.Error())
	}
	nowStr := time.Now().UTC().Format(timeFormat)

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (d:Document {url: $url})
			SET d.content_hash = $content_hash,
			    d.last_checked = $now
		`, map[string]any{
			"url":          sourceURL,
			"content_hash": contentHash,
			"now":          nowStr,
		})
		return nil, err
	})
	if err != nil {
		return NewQueryError("set document state", err)
	}

	return nil
}
