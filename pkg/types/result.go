package types

import "time"

// ProcessStatus is the terminal state of one process-url run.
type ProcessStatus string

const (
	// StatusSuccess means new or changed facts were stored.
	StatusSuccess ProcessStatus = "success"
	// StatusUnchangedVerified means the document hash matched and live
	// edges were re-verified in place.
	StatusUnchangedVerified ProcessStatus = "unchanged_verified"
	// StatusNoFacts means extraction succeeded but produced nothing.
	StatusNoFacts ProcessStatus = "no_facts"
	// StatusScrapeFailed means the scrape layer exhausted its retries.
	StatusScrapeFailed ProcessStatus = "scrape_failed"
	// StatusExtractFailed means the extractor transport failed outright.
	StatusExtractFailed ProcessStatus = "extract_failed"
	// StatusStoreFailed means a graph write failed.
	StatusStoreFailed ProcessStatus = "store_failed"
)

// ProcessResult is the plain record a process-url run returns. No error
// crosses the orchestrator boundary; failures surface as a status plus the
// Error string.
type ProcessResult struct {
	Status ProcessStatus `json:"status"`
	URL    string        `json:"url"`

	// Populated on success
	ExtractedNodes int          `json:"extracted_nodes,omitempty"`
	ExtractedEdges int          `json:"extracted_edges,omitempty"`
	Stats          *UpsertStats `json:"stats,omitempty"`

	// Populated on unchanged_verified
	Reason       string `json:"reason,omitempty"`
	EdgesUpdated int64  `json:"edges_updated,omitempty"`

	// Populated on failure
	Error string `json:"error,omitempty"`
}

// Snapshot is the graph as of a single instant: the live edges and their
// endpoint entities, shaped for direct consumption by a force-graph style
// visualizer.
type Snapshot struct {
	Nodes    []SnapshotNode   `json:"nodes"`
	Links    []SnapshotLink   `json:"links"`
	Metadata SnapshotMetadata `json:"metadata"`
}

// SnapshotNode is one entity in a snapshot. Val carries the degree so the
// renderer can size nodes by connectivity.
type SnapshotNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Val  int    `json:"val"`
}

// SnapshotLink is one live-at-instant edge in a snapshot.
type SnapshotLink struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Relation   string     `json:"relation"`
	Confidence float64    `json:"confidence"`
	SourceURL  string     `json:"source_url,omitempty"`
	ValidFrom  time.Time  `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to,omitempty"`
}

// SnapshotMetadata describes when the snapshot was taken and its size.
type SnapshotMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	NodeCount int       `json:"node_count"`
	LinkCount int       `json:"link_count"`
}
