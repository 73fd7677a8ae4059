// Package agent orchestrates the scrape, extract and store layers into the
// process-url pipeline and drives the background healing loop that keeps
// the graph verified against its sources.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundprediction/sentinel/pkg/alert"
	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/extract"
	"github.com/soundprediction/sentinel/pkg/metrics"
	"github.com/soundprediction/sentinel/pkg/scrape"
	"github.com/soundprediction/sentinel/pkg/types"
)

// Store is the slice of the graph store the agent depends on.
type Store interface {
	UpsertBundle(ctx context.Context, bundle *types.Bundle) (*types.UpsertStats, error)
	MarkVerified(ctx context.Context, sourceURL string) (int64, error)
	GetDocumentState(ctx context.Context, sourceURL string) (*types.DocumentState, error)
	SetDocumentState(ctx context.Context, sourceURL, contentHash string) error
	FindStale(ctx context.Context, days int) ([]string, error)
}

// Agent ties the pipeline together. All dependencies are injected; the
// agent keeps no package-level state.
type Agent struct {
	store     Store
	scraper   scrape.Scraper
	extractor extract.Extractor
	heal      config.HealConfig
	alerter   alert.Alerter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	status    *StatusTracker

	running    atomic.Bool
	reportMu   sync.RWMutex
	lastReport *HealReport
}

// New creates an agent over the given dependencies. A nil alerter disables
// healing-failure notifications.
func New(store Store, scraper scrape.Scraper, extractor extract.Extractor, heal config.HealConfig, alerter alert.Alerter, m *metrics.Metrics, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = &alert.NoOpAlerter{}
	}
	return &Agent{
		store:     store,
		scraper:   scraper,
		extractor: extractor,
		heal:      heal,
		alerter:   alerter,
		metrics:   m,
		logger:    logger,
		status:    NewStatusTracker(),
	}
}

// Status returns the agent's status tracker.
func (a *Agent) Status() *StatusTracker {
	return a.status
}

// IsRunning reports whether the healing loop is active.
func (a *Agent) IsRunning() bool {
	return a.running.Load()
}

// LastHealReport returns the report of the most recent healing pass, or nil
// before the first pass completes.
func (a *Agent) LastHealReport() *HealReport {
	a.reportMu.RLock()
	defer a.reportMu.RUnlock()
	return a.lastReport
}

// ProcessURL runs the full pipeline for one URL: fetch, compare against the
// stored document hash, then either re-verify in place or extract and
// upsert. The result is always a plain record; failures are carried in the
// status and error fields, and no panic escapes.
func (a *Agent) ProcessURL(ctx context.Context, url string) (result *types.ProcessResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic while processing url", "url", url, "panic", r)
			result = &types.ProcessResult{
				Status: types.StatusStoreFailed,
				URL:    url,
				Error:  fmt.Sprintf("panic: %v", r),
			}
		}
		a.metrics.ObserveProcessDuration(time.Since(start).Seconds())
		a.metrics.RecordResult(result)
		a.logger.Info("url processed",
			"url", url,
			"status", string(result.Status),
			"duration_ms", time.Since(start).Milliseconds())
	}()

	a.status.Set(StateProcessing, "processing "+url)

	doc, err := a.scraper.Scrape(ctx, url)
	if err != nil {
		a.logger.Warn("scrape failed", "url", url, "error", err)
		a.status.Set(StateIdle, "scrape failed for "+url)
		return &types.ProcessResult{Status: types.StatusScrapeFailed, URL: url, Error: err.Error()}
	}

	state, err := a.store.GetDocumentState(ctx, url)
	if err != nil {
		a.logger.Error("document state lookup failed", "url", url, "error", err)
		a.status.Set(StateIdle, "store failure for "+url)
		return &types.ProcessResult{Status: types.StatusStoreFailed, URL: url, Error: err.Error()}
	}

	if state != nil && state.ContentHash == doc.ContentHash {
		return a.verifyUnchanged(ctx, url, doc)
	}

	return a.extractAndStore(ctx, url, doc)
}

// verifyUnchanged handles the short-circuit path: the page hash matches the
// stored one, so every live edge from this source gets re-verified without
// touching the extractor.
func (a *Agent) verifyUnchanged(ctx context.Context, url string, doc *types.Document) *types.ProcessResult {
	updated, err := a.store.MarkVerified(ctx, url)
	if err != nil {
		a.logger.Error("verification update failed", "url", url, "error", err)
		a.status.Set(StateIdle, "store failure for "+url)
		return &types.ProcessResult{Status: types.StatusStoreFailed, URL: url, Error: err.Error()}
	}
	if err := a.store.SetDocumentState(ctx, url, doc.ContentHash); err != nil {
		a.logger.Error("document state update failed", "url", url, "error", err)
		a.status.Set(StateIdle, "store failure for "+url)
		return &types.ProcessResult{Status: types.StatusStoreFailed, URL: url, Error: err.Error()}
	}

	a.logger.Info("document unchanged, edges verified", "url", url, "edges_updated", updated)
	a.status.Set(StateIdle, "verified "+url)

	return &types.ProcessResult{
		Status:       types.StatusUnchangedVerified,
		URL:          url,
		Reason:       "content_unchanged",
		EdgesUpdated: updated,
	}
}

// extractAndStore handles the changed-or-new path: extract facts and upsert
// them, recording the document hash on every outcome that consumed the page.
func (a *Agent) extractAndStore(ctx context.Context, url string, doc *types.Document) *types.ProcessResult {
	bundle, err := a.extractor.Extract(ctx, doc.Content)
	if err != nil {
		a.logger.Error("extraction failed", "url", url, "error", err)
		a.status.Set(StateIdle, "extraction failed for "+url)
		return &types.ProcessResult{Status: types.StatusExtractFailed, URL: url, Error: err.Error()}
	}

	if bundle.IsEmpty() {
		if err := a.store.SetDocumentState(ctx, url, doc.ContentHash); err != nil {
			a.logger.Error("document state update failed", "url", url, "error", err)
			a.status.Set(StateIdle, "store failure for "+url)
			return &types.ProcessResult{Status: types.StatusStoreFailed, URL: url, Error: err.Error()}
		}
		a.logger.Info("no facts extracted", "url", url)
		a.status.Set(StateIdle, "no facts in "+url)
		return &types.ProcessResult{Status: types.StatusNoFacts, URL: url}
	}

	for _, edge := range bundle.Edges {
		edge.SourceURL = url
	}

	stats, err := a.store.UpsertBundle(ctx, bundle)
	if err != nil {
		a.logger.Error("bundle upsert failed", "url", url, "error", err)
		a.status.Set(StateIdle, "store failure for "+url)
		return &types.ProcessResult{Status: types.StatusStoreFailed, URL: url, Error: err.Error()}
	}
	if err := a.store.SetDocumentState(ctx, url, doc.ContentHash); err != nil {
		a.logger.Error("document state update failed", "url", url, "error", err)
		a.status.Set(StateIdle, "store failure for "+url)
		return &types.ProcessResult{Status: types.StatusStoreFailed, URL: url, Error: err.Error()}
	}

	a.logger.Info("stored bundle",
		"url", url,
		"nodes_created", stats.NodesCreated,
		"edges_created", stats.EdgesCreated,
		"edges_verified", stats.EdgesVerified,
		"edges_invalidated", stats.EdgesInvalidated,
	)
	a.status.Set(StateIdle, "stored "+url)

	return &types.ProcessResult{
		Status:         types.StatusSuccess,
		URL:            url,
		ExtractedNodes: len(bundle.Nodes),
		ExtractedEdges: len(bundle.Edges),
		Stats:          stats,
	}
}
