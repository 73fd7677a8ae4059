// Package handlers implements the HTTP facade's endpoint handlers. Each
// handler type owns one slice of the API and receives its collaborators
// through a constructor.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/sentinel/pkg/agent"
	"github.com/soundprediction/sentinel/pkg/query"
	"github.com/soundprediction/sentinel/pkg/server/dto"
	"github.com/soundprediction/sentinel/pkg/types"
)

// Graph is the store surface the facade reads from.
type Graph interface {
	SnapshotAt(ctx context.Context, t time.Time) (*types.Snapshot, error)
	Stats(ctx context.Context) (*types.GraphStats, error)
	FindStale(ctx context.Context, days int) ([]string, error)
	VerifyConnectivity(ctx context.Context) error
}

// Orchestrator is the agent surface the facade drives.
type Orchestrator interface {
	ProcessURL(ctx context.Context, url string) *types.ProcessResult
	IsRunning() bool
	Status() *agent.StatusTracker
}

// Asker answers natural-language questions against the graph.
type Asker interface {
	Ask(ctx context.Context, question, timestamp string) (*query.Response, error)
}

// errorJSON writes the uniform error envelope.
func errorJSON(c *gin.Context, status int, code, detail string) {
	c.JSON(status, dto.ErrorResponse{Error: code, Detail: detail})
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
