package sentinel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundprediction/sentinel/pkg/agent"
	"github.com/soundprediction/sentinel/pkg/alert"
	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/extract"
	"github.com/soundprediction/sentinel/pkg/metrics"
	"github.com/soundprediction/sentinel/pkg/query"
	"github.com/soundprediction/sentinel/pkg/scrape"
	"github.com/soundprediction/sentinel/pkg/types"
)

// GraphStore is the full storage surface the client drives: the agent's
// write path, the query engine's read path, and graph maintenance.
type GraphStore interface {
	agent.Store
	query.Querier
	SnapshotAt(ctx context.Context, t time.Time) (*types.Snapshot, error)
	Stats(ctx context.Context) (*types.GraphStats, error)
	VerifyConnectivity(ctx context.Context) error
	CreateIndices(ctx context.Context) error
	ClearAll(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}

// Watcher ingests sources into the graph.
type Watcher interface {
	// Watch scrapes a URL, extracts facts and reconciles them with the
	// graph's history. The result records the terminal status; errors are
	// carried inside it, never returned.
	Watch(ctx context.Context, url string) *types.ProcessResult
}

// Healer re-verifies sources whose facts have gone stale.
type Healer interface {
	// HealOnce performs a single healing pass and returns its report.
	HealOnce(ctx context.Context) *agent.HealReport

	// RunHealingLoop runs healing passes until the context is cancelled.
	RunHealingLoop(ctx context.Context)

	// LastHealReport returns the most recent pass report, or nil before
	// the first pass completes.
	LastHealReport() *agent.HealReport
}

// Asker answers natural-language questions from the graph.
type Asker interface {
	// Ask answers a question, optionally as of the RFC3339 instant given
	// in timestamp. An empty timestamp means now.
	Ask(ctx context.Context, question, timestamp string) (*query.Response, error)
}

// GraphReader provides read-only views of the graph.
type GraphReader interface {
	// Snapshot returns the graph as of t; the zero time means now.
	Snapshot(ctx context.Context, t time.Time) (*types.Snapshot, error)

	// Stats returns entity and live edge counts.
	Stats(ctx context.Context) (*types.GraphStats, error)

	// FindStale lists source URLs with no verification in the last days.
	FindStale(ctx context.Context, days int) ([]string, error)
}

// Sentinel is the composed interface for the whole library surface.
type Sentinel interface {
	Watcher
	Healer
	Asker
	GraphReader

	// Status returns the agent's live status tracker.
	Status() *agent.StatusTracker

	// IsRunning reports whether the healing loop is active.
	IsRunning() bool

	// CreateIndices ensures the store's indexes and constraints exist.
	CreateIndices(ctx context.Context) error

	// ClearGraph removes every node and edge, returning the number of
	// nodes deleted. Irreversible.
	ClearGraph(ctx context.Context) (int64, error)

	// Close releases the store connection.
	Close(ctx context.Context) error
}

// Client is the default Sentinel implementation.
type Client struct {
	store  GraphStore
	agent  *agent.Agent
	engine *query.Engine
	logger *slog.Logger
}

var _ Sentinel = (*Client)(nil)

// NewClient wires a client over the given components. The store, scraper
// and extractor are required; alerter may be nil to disable notifications,
// metrics may be nil to skip instrumentation and logger may be nil to use
// slog.Default().
func NewClient(store GraphStore, scraper scrape.Scraper, extractor extract.Extractor, heal config.HealConfig, alerter alert.Alerter, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if scraper == nil {
		return nil, errors.New("scraper is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		store:  store,
		agent:  agent.New(store, scraper, extractor, heal, alerter, m, logger),
		engine: query.New(store, logger),
		logger: logger,
	}, nil
}

// Watch implements Watcher.
func (c *Client) Watch(ctx context.Context, url string) *types.ProcessResult {
	return c.agent.ProcessURL(ctx, url)
}

// HealOnce implements Healer.
func (c *Client) HealOnce(ctx context.Context) *agent.HealReport {
	return c.agent.HealOnce(ctx)
}

// RunHealingLoop implements Healer.
func (c *Client) RunHealingLoop(ctx context.Context) {
	c.agent.RunHealingLoop(ctx)
}

// LastHealReport implements Healer.
func (c *Client) LastHealReport() *agent.HealReport {
	return c.agent.LastHealReport()
}

// Ask implements Asker.
func (c *Client) Ask(ctx context.Context, question, timestamp string) (*query.Response, error) {
	return c.engine.Ask(ctx, question, timestamp)
}

// Snapshot implements GraphReader.
func (c *Client) Snapshot(ctx context.Context, t time.Time) (*types.Snapshot, error) {
	return c.store.SnapshotAt(ctx, t)
}

// Stats implements GraphReader.
func (c *Client) Stats(ctx context.Context) (*types.GraphStats, error) {
	return c.store.Stats(ctx)
}

// FindStale implements GraphReader.
func (c *Client) FindStale(ctx context.Context, days int) ([]string, error) {
	return c.store.FindStale(ctx, days)
}

// Status returns the agent's live status tracker.
func (c *Client) Status() *agent.StatusTracker {
	return c.agent.Status()
}

// IsRunning reports whether the healing loop is active.
func (c *Client) IsRunning() bool {
	return c.agent.IsRunning()
}

// CreateIndices ensures the store's indexes and constraints exist.
func (c *Client) CreateIndices(ctx context.Context) error {
	return c.store.CreateIndices(ctx)
}

// ClearGraph removes every node and edge, returning the number of nodes
// deleted. Irreversible.
func (c *Client) ClearGraph(ctx context.Context) (int64, error) {
	return c.store.ClearAll(ctx)
}

// Close releases the store connection.
func (c *Client) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}

// Agent exposes the underlying agent for callers that wire their own
// serving layer around the client.
func (c *Client) Agent() *agent.Agent {
	return c.agent
}

// Engine exposes the underlying query engine.
func (c *Client) Engine() *query.Engine {
	return c.engine
}

// Store exposes the underlying graph store.
func (c *Client) Store() GraphStore {
	return c.store
}
