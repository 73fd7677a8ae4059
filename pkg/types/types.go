package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyID       = errors.New("id cannot be empty")
	ErrEmptyURL      = errors.New("url cannot be empty")
	ErrEmptySource   = errors.New("edge source cannot be empty")
	ErrEmptyTarget   = errors.New("edge target cannot be empty")
	ErrEmptyRelation = errors.New("edge relation cannot be empty")
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

// Node represents an entity in the knowledge graph. Identity is the
// caller-supplied slug ID; merging a node with an existing ID updates
// properties last-writer-wins per key.
type Node struct {
	ID         string                 `json:"id" mapstructure:"id"`
	Label      string                 `json:"label" mapstructure:"label"`
	Properties map[string]interface{} `json:"properties,omitempty" mapstructure:"properties"`
}

// Validate checks if the Node has all required fields set.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// WithDefaults fills in the default label and a name property derived from
// the ID so synthesized nodes render sensibly in snapshots.
func (n *Node) WithDefaults() *Node {
	if n.Label == "" {
		n.Label = "Entity"
	}
	if n.Properties == nil {
		n.Properties = map[string]interface{}{"name": n.ID}
	}
	return n
}

// Bundle is a batch of entities and proposed edges applied as one logical
// assertion at a single server-clock instant.
type Bundle struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// IsEmpty reports whether the bundle carries no assertions at all.
func (b *Bundle) IsEmpty() bool {
	return b == nil || (len(b.Nodes) == 0 && len(b.Edges) == 0)
}

// UpsertStats summarizes the outcome of one UpsertBundle call.
type UpsertStats struct {
	NodesCreated     int `json:"nodes_created"`
	EdgesCreated     int `json:"edges_created"`
	EdgesVerified    int `json:"edges_verified"`
	EdgesInvalidated int `json:"edges_invalidated"`
}

// GraphStats holds whole-graph totals for the stats surface.
type GraphStats struct {
	TotalNodes int64 `json:"total_nodes"`
	TotalEdges int64 `json:"total_edges"`
}

// DocumentState tracks the most recent content hash observed for a source
// document, used to short-circuit unchanged re-scrapes.
type DocumentState struct {
	SourceURL   string    `json:"source_url"`
	ContentHash string    `json:"content_hash"`
	LastChecked time.Time `json:"last_checked"`
}

// Document is the normalized output of a scrape: plain text plus its
// SHA-256 content hash and whatever metadata the provider surfaced.
type Document struct {
	URL         string                 `json:"url"`
	Content     string                 `json:"content"`
	ContentHash string                 `json:"content_hash"`
	Title       string                 `json:"title,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
