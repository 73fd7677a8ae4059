package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/sentinel/pkg/query"
	"github.com/soundprediction/sentinel/pkg/server/dto"
)

// QueryHandler serves the natural-language question endpoint.
type QueryHandler struct {
	engine Asker
	logger *slog.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(engine Asker, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryHandler{
		engine: engine,
		logger: logger,
	}
}

// Query handles POST /api/query.
func (h *QueryHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.engine.Ask(c.Request.Context(), req.Question, req.Timestamp)
	if err != nil {
		if errors.Is(err, &query.QueryError{}) {
			errorJSON(c, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}
		h.logger.Error("query failed", "question", req.Question, "error", err)
		errorJSON(c, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, resp)
}
