package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/soundprediction/sentinel/pkg/agent"
	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/metrics"
	"github.com/soundprediction/sentinel/pkg/query"
	"github.com/soundprediction/sentinel/pkg/types"
)

type fakeGraph struct {
	snapshot    *types.Snapshot
	snapshotErr error
	stats       *types.GraphStats
	statsErr    error
	stale       []string
	staleErr    error
	connErr     error
	lastAt      time.Time
}

func (f *fakeGraph) SnapshotAt(ctx context.Context, t time.Time) (*types.Snapshot, error) {
	f.lastAt = t
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	if f.snapshot != nil {
		return f.snapshot, nil
	}
	return &types.Snapshot{Nodes: []types.SnapshotNode{}, Links: []types.SnapshotLink{}}, nil
}

func (f *fakeGraph) Stats(ctx context.Context) (*types.GraphStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &types.GraphStats{}, nil
}

func (f *fakeGraph) FindStale(ctx context.Context, days int) ([]string, error) {
	if f.staleErr != nil {
		return nil, f.staleErr
	}
	return f.stale, nil
}

func (f *fakeGraph) VerifyConnectivity(ctx context.Context) error {
	return f.connErr
}

type fakeOrchestrator struct {
	result  *types.ProcessResult
	running bool
	tracker *agent.StatusTracker
	lastURL string
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{
		result:  &types.ProcessResult{Status: types.StatusSuccess},
		tracker: agent.NewStatusTracker(),
	}
}

func (f *fakeOrchestrator) ProcessURL(ctx context.Context, url string) *types.ProcessResult {
	f.lastURL = url
	result := *f.result
	result.URL = url
	return &result
}

func (f *fakeOrchestrator) IsRunning() bool { return f.running }

func (f *fakeOrchestrator) Status() *agent.StatusTracker { return f.tracker }

type fakeAsker struct {
	resp *query.Response
	err  error
}

func (f *fakeAsker) Ask(ctx context.Context, question, timestamp string) (*query.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeQueue struct {
	id      string
	err     error
	lastURL string
}

func (f *fakeQueue) Enqueue(ctx context.Context, url string) (string, error) {
	f.lastURL = url
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func (f *fakeQueue) Run(ctx context.Context) error { return nil }
func (f *fakeQueue) Close() error                  { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080, Mode: "test"},
		Heal:   config.HealConfig{DaysThreshold: 7},
	}
}

func newTestServer(graph *fakeGraph, orch *fakeOrchestrator) *Server {
	s := New(testConfig(), graph, orch,
		&fakeAsker{resp: &query.Response{Answer: "ok", Path: []string{}, Results: []map[string]any{}}},
		&fakeQueue{id: "job-123"}, nil, nil)
	s.Setup()
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v: %s", err, w.Body.String())
	}
	return body
}

func TestSetup(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	if s.router == nil {
		t.Error("expected router to be initialized")
	}
	if s.server == nil {
		t.Error("expected http.Server to be initialized")
	}
	if s.server.Addr != "localhost:8080" {
		t.Errorf("expected addr localhost:8080, got %s", s.server.Addr)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := decode(t, w)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["agent_status"] != "stopped" {
		t.Errorf("expected stopped agent, got %v", body["agent_status"])
	}
}

func TestHealthEndpointRunningAgent(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.running = true
	s := newTestServer(&fakeGraph{}, orch)

	body := decode(t, do(s, http.MethodGet, "/api/health", ""))
	if body["agent_status"] != "running" {
		t.Errorf("expected running agent, got %v", body["agent_status"])
	}
}

func TestHealthEndpointStoreDown(t *testing.T) {
	s := newTestServer(&fakeGraph{connErr: errors.New("refused")}, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	if decode(t, w)["status"] != "unhealthy" {
		t.Error("expected unhealthy status")
	}
}

func TestRootAlias(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 at root, got %d", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.tracker.Set(agent.StateHealing, "scanning for stale sources")
	s := newTestServer(&fakeGraph{}, orch)

	w := do(s, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := decode(t, w)
	if body["state"] != agent.StateHealing {
		t.Errorf("expected healing state, got %v", body["state"])
	}
	if body["message"] != "scanning for stale sources" {
		t.Errorf("unexpected message: %v", body["message"])
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	graph := &fakeGraph{snapshot: &types.Snapshot{
		Nodes: []types.SnapshotNode{{ID: "openai", Name: "OpenAI", Val: 1}},
		Links: []types.SnapshotLink{{Source: "openai", Target: "sam", Relation: "HAS_CEO"}},
	}}
	s := newTestServer(graph, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/api/snapshot", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !graph.lastAt.IsZero() {
		t.Error("no timestamp given, expected zero instant (now)")
	}

	body := decode(t, w)
	nodes := body["nodes"].([]any)
	if len(nodes) != 1 {
		t.Errorf("expected 1 node, got %d", len(nodes))
	}
}

func TestSnapshotEndpointWithTimestamp(t *testing.T) {
	graph := &fakeGraph{}
	s := newTestServer(graph, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/api/snapshot?timestamp=2024-06-01T00:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !graph.lastAt.Equal(want) {
		t.Errorf("expected %v passed to store, got %v", want, graph.lastAt)
	}
}

func TestSnapshotEndpointBadTimestamp(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/api/snapshot?timestamp=not-a-time", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if decode(t, w)["error"] != "invalid_timestamp" {
		t.Error("expected invalid_timestamp error code")
	}
}

func TestSnapshotEndpointStoreFailure(t *testing.T) {
	s := newTestServer(&fakeGraph{snapshotErr: errors.New("bolt down")}, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/api/snapshot", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	graph := &fakeGraph{
		stats: &types.GraphStats{TotalNodes: 42, TotalEdges: 99},
		stale: []string{"https://a.example", "https://b.example"},
	}
	s := newTestServer(graph, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	body := decode(t, w)
	if body["total_nodes"].(float64) != 42 {
		t.Errorf("expected 42 nodes, got %v", body["total_nodes"])
	}
	if body["total_edges"].(float64) != 99 {
		t.Errorf("expected 99 edges, got %v", body["total_edges"])
	}
	if body["stale_urls_count"].(float64) != 2 {
		t.Errorf("expected 2 stale urls, got %v", body["stale_urls_count"])
	}
	if body["timestamp"] == "" {
		t.Error("expected a timestamp")
	}
}

func TestIngestEndpoint(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.result = &types.ProcessResult{
		Status:         types.StatusSuccess,
		ExtractedNodes: 3,
		ExtractedEdges: 2,
	}
	s := newTestServer(&fakeGraph{}, orch)

	w := do(s, http.MethodPost, "/api/ingest", `{"url": "https://example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if orch.lastURL != "https://example.com" {
		t.Errorf("expected url to reach the agent, got %q", orch.lastURL)
	}

	body := decode(t, w)
	if body["status"] != "success" {
		t.Errorf("expected success result, got %v", body["status"])
	}
}

func TestIngestEndpointMissingURL(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodPost, "/api/ingest", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestIngestEndpointNoAgent(t *testing.T) {
	s := New(testConfig(), &fakeGraph{}, nil, &fakeAsker{}, &fakeQueue{}, nil, nil)
	s.Setup()

	w := do(s, http.MethodPost, "/api/ingest", `{"url": "https://example.com"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 without agent, got %d", w.Code)
	}
}

func TestJobEndpoint(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodPost, "/api/job", `{"url": "https://example.com"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", w.Code)
	}

	body := decode(t, w)
	if body["job_id"] != "job-123" {
		t.Errorf("expected job id, got %v", body["job_id"])
	}
	if body["status"] != "queued" {
		t.Errorf("expected queued, got %v", body["status"])
	}
}

func TestQueryEndpoint(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodPost, "/api/query", `{"question": "Who founded OpenAI?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if decode(t, w)["answer"] != "ok" {
		t.Error("expected engine answer in response")
	}
}

func TestQueryEndpointBadInput(t *testing.T) {
	s := New(testConfig(), &fakeGraph{}, newFakeOrchestrator(),
		&fakeAsker{err: query.NewQueryError("malformed timestamp", nil)},
		&fakeQueue{}, nil, nil)
	s.Setup()

	w := do(s, http.MethodPost, "/api/query", `{"question": "x", "timestamp": "bad"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if decode(t, w)["error"] != "invalid_query" {
		t.Error("expected invalid_query error code")
	}
}

func TestQueryEndpointEmptyQuestion(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodPost, "/api/query", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodOptions, "/api/health", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for OPTIONS, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected Access-Control-Allow-Methods header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	m.ProcessedURLs.WithLabelValues("success").Inc()
	s := New(testConfig(), &fakeGraph{}, newFakeOrchestrator(),
		&fakeAsker{}, &fakeQueue{}, registry, nil)
	s.Setup()

	w := do(s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "sentinel_processed_urls_total") {
		t.Error("expected sentinel metrics in scrape output")
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	w := do(s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without a registry, got %d", w.Code)
	}
}

func TestRouteExists(t *testing.T) {
	s := newTestServer(&fakeGraph{}, newFakeOrchestrator())

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/api/health"},
		{http.MethodGet, "/api/status"},
		{http.MethodGet, "/api/snapshot"},
		{http.MethodGet, "/api/stats"},
		{http.MethodPost, "/api/ingest"},
		{http.MethodPost, "/api/job"},
		{http.MethodPost, "/api/query"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := do(s, route.method, route.path, "")
			if w.Code == http.StatusNotFound {
				t.Errorf("route %s %s returned 404, route not registered", route.method, route.path)
			}
		})
	}
}
