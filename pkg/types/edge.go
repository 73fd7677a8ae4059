package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Edge represents a bitemporal assertion between two entities. Identity is
// the content hash over (source, relation, target, properties); the
// temporal and provenance fields deliberately stay out of the hash so a
// re-asserted fact maps onto the same edge.
type Edge struct {
	Source     string                 `json:"source" mapstructure:"source"`
	Target     string                 `json:"target" mapstructure:"target"`
	Relation   string                 `json:"relation" mapstructure:"relation"`
	Properties map[string]interface{} `json:"properties,omitempty" mapstructure:"properties"`

	// Temporal fields
	ValidFrom time.Time  `json:"valid_from" mapstructure:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty" mapstructure:"valid_to"`

	// Verification tracking
	LastVerified      time.Time `json:"last_verified" mapstructure:"last_verified"`
	VerificationCount int64     `json:"verification_count" mapstructure:"verification_count"`

	// Provenance
	SourceURL  string  `json:"source_url,omitempty" mapstructure:"source_url"`
	Confidence float64 `json:"confidence" mapstructure:"confidence"`
}

// Validate checks if the Edge has all required fields set.
func (e *Edge) Validate() error {
	if e.Source == "" {
		return ErrEmptySource
	}
	if e.Target == "" {
		return ErrEmptyTarget
	}
	if e.Relation == "" {
		return ErrEmptyRelation
	}
	return nil
}

// IsLive reports whether the edge is currently asserted.
func (e *Edge) IsLive() bool {
	return e.ValidTo == nil
}

// ComputeHash returns the SHA-256 content hash identifying this edge:
// source, relation, target, and the canonical JSON of the property map.
// valid_from, source_url, and confidence are excluded so the same fact
// re-observed later (or from another document) hashes identically.
func (e *Edge) ComputeHash() string {
	h := sha256.New()
	h.Write([]byte(e.Source))
	h.Write([]byte("|"))
	h.Write([]byte(e.Relation))
	h.Write([]byte("|"))
	h.Write([]byte(e.Target))
	h.Write([]byte("|"))
	h.Write([]byte(CanonicalJSON(e.Properties)))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalJSON renders a flat property map deterministically. encoding/json
// sorts map keys, which is sufficient for the scalar maps edges carry.
func CanonicalJSON(props map[string]interface{}) string {
	if len(props) == 0 {
		return "{}"
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// NormalizeRelation canonicalizes a relation symbol: uppercase with spaces
// and hyphens collapsed to underscores ("works at" -> "WORKS_AT").
func NormalizeRelation(relation string) string {
	r := strings.TrimSpace(relation)
	r = strings.ToUpper(r)
	r = strings.ReplaceAll(r, " ", "_")
	r = strings.ReplaceAll(r, "-", "_")
	return r
}
