package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/sentinel/pkg/server/dto"
)

// GraphHandler serves the read-only graph surfaces.
type GraphHandler struct {
	graph     Graph
	staleDays int
	logger    *slog.Logger
}

// NewGraphHandler creates a new graph handler. staleDays is the healing
// threshold used for the stale count in stats.
func NewGraphHandler(graph Graph, staleDays int, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphHandler{
		graph:     graph,
		staleDays: staleDays,
		logger:    logger,
	}
}

// Snapshot handles GET /api/snapshot - the graph as of now, or as of the
// optional RFC3339 timestamp query parameter.
func (h *GraphHandler) Snapshot(c *gin.Context) {
	var at time.Time
	if ts := c.Query("timestamp"); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid_timestamp", err.Error())
			return
		}
		at = parsed
	}

	snapshot, err := h.graph.SnapshotAt(c.Request.Context(), at)
	if err != nil {
		h.logger.Error("snapshot failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "snapshot_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// Stats handles GET /api/stats - whole-graph totals plus the current
// stale-source count.
func (h *GraphHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.graph.Stats(ctx)
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}

	stale, err := h.graph.FindStale(ctx, h.staleDays)
	if err != nil {
		h.logger.Error("stale scan failed", "error", err)
		errorJSON(c, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.StatsResponse{
		TotalNodes:     stats.TotalNodes,
		TotalEdges:     stats.TotalEdges,
		StaleURLsCount: len(stale),
		Timestamp:      nowRFC3339(),
	})
}
