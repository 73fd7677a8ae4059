// Package dto holds the request and response shapes of the HTTP facade.
package dto

// IngestRequest submits one URL for synchronous processing.
type IngestRequest struct {
	URL string `json:"url" binding:"required"`
}

// JobRequest submits one URL for asynchronous processing.
type JobRequest struct {
	URL string `json:"url" binding:"required"`
}

// JobResponse acknowledges an accepted job.
type JobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// QueryRequest carries a natural-language question, optionally bound to a
// past instant.
type QueryRequest struct {
	Question  string `json:"question" binding:"required"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HealthResponse reports service liveness and the healing agent's state.
type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	AgentStatus string `json:"agent_status"`
}

// StatsResponse reports whole-graph totals.
type StatsResponse struct {
	TotalNodes     int64  `json:"total_nodes"`
	TotalEdges     int64  `json:"total_edges"`
	StaleURLsCount int    `json:"stale_urls_count"`
	Timestamp      string `json:"timestamp"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
