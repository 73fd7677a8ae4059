package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/sentinel/pkg/server/dto"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler serves the health and status surfaces.
type HealthHandler struct {
	graph Graph
	agent Orchestrator
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(graph Graph, orch Orchestrator) *HealthHandler {
	return &HealthHandler{
		graph: graph,
		agent: orch,
	}
}

// Health handles GET /api/health and the GET / alias. It probes store
// connectivity and reports whether the healing agent is running.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	agentStatus := "stopped"
	if h.agent != nil && h.agent.IsRunning() {
		agentStatus = "running"
	}

	response := dto.HealthResponse{
		Status:      "healthy",
		Timestamp:   nowRFC3339(),
		AgentStatus: agentStatus,
	}

	if h.graph == nil {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	if err := h.graph.VerifyConnectivity(ctx); err != nil {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Status handles GET /api/status - the agent's status tracker record.
func (h *HealthHandler) Status(c *gin.Context) {
	if h.agent == nil {
		errorJSON(c, http.StatusServiceUnavailable, "agent_unavailable", "agent not initialized")
		return
	}
	c.JSON(http.StatusOK, h.agent.Status().Get())
}
