package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/sentinel/pkg/queue"
	"github.com/soundprediction/sentinel/pkg/server/dto"
)

// processBudget bounds one synchronous ingest request end to end.
const processBudget = 300 * time.Second

// IngestHandler serves synchronous ingestion and job submission.
type IngestHandler struct {
	agent  Orchestrator
	jobs   queue.Queue
	logger *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(orch Orchestrator, jobs queue.Queue, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		agent:  orch,
		jobs:   jobs,
		logger: logger,
	}
}

// Ingest handles POST /api/ingest - runs the pipeline inline and returns
// the full result record.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if h.agent == nil {
		errorJSON(c, http.StatusServiceUnavailable, "agent_unavailable", "agent not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), processBudget)
	defer cancel()

	result := h.agent.ProcessURL(ctx, req.URL)
	c.JSON(http.StatusOK, result)
}

// SubmitJob handles POST /api/job - enqueues a URL for asynchronous
// processing and returns the job receipt.
func (h *IngestHandler) SubmitJob(c *gin.Context) {
	var req dto.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if h.jobs == nil {
		errorJSON(c, http.StatusServiceUnavailable, "queue_unavailable", "job queue not initialized")
		return
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Error("job enqueue failed", "url", req.URL, "error", err)
		errorJSON(c, http.StatusInternalServerError, "enqueue_failed", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, dto.JobResponse{
		JobID:  jobID,
		Status: "queued",
	})
}
