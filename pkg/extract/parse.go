package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/sentinel/pkg/types"
)

type rawNode struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Properties map[string]interface{} `json:"properties"`
}

type rawEdge struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Relation   string                 `json:"relation"`
	Properties map[string]interface{} `json:"properties"`
	Confidence *float64               `json:"confidence"`
}

type rawBundle struct {
	Nodes []rawNode `json:"nodes"`
	Edges []rawEdge `json:"edges"`
}

// parseBundle decodes a model response into a normalized bundle. The
// response is repaired before decoding because local models routinely emit
// trailing commas, comments, or unquoted keys.
func parseBundle(content string) (*types.Bundle, error) {
	content, _ = jsonrepair.JSONRepair(content)
	content = strings.TrimSpace(content)

	keys, err := decodeObject(content)
	if err != nil {
		// The object may be buried in prose; retry on the outermost braces.
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("response is not a JSON object")
		}
		keys, err = decodeObject(content[start : end+1])
		if err != nil {
			return nil, err
		}
	}

	nodesRaw, hasNodes := keys["nodes"]
	edgesRaw, hasEdges := keys["edges"]
	if !hasNodes && !hasEdges {
		return nil, fmt.Errorf("response has neither nodes nor edges")
	}

	raw := rawBundle{}
	if hasNodes {
		if err := json.Unmarshal(nodesRaw, &raw.Nodes); err != nil {
			return nil, fmt.Errorf("nodes is not an array of node objects: %w", err)
		}
	}
	if hasEdges {
		if err := json.Unmarshal(edgesRaw, &raw.Edges); err != nil {
			return nil, fmt.Errorf("edges is not an array of edge objects: %w", err)
		}
	}

	return normalizeBundle(raw), nil
}

func decodeObject(content string) (map[string]json.RawMessage, error) {
	keys := make(map[string]json.RawMessage)
	if err := json.Unmarshal([]byte(content), &keys); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return keys, nil
}

// normalizeBundle enforces the extraction contract: ids trimmed, relations
// canonicalized, confidence defaulted to 0.5 and clamped to [0,1], invalid
// edges dropped, and entities referenced only by edges synthesized.
func normalizeBundle(raw rawBundle) *types.Bundle {
	bundle := &types.Bundle{
		Nodes: make([]*types.Node, 0, len(raw.Nodes)),
		Edges: make([]*types.Edge, 0, len(raw.Edges)),
	}

	known := make(map[string]bool)
	for _, n := range raw.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			continue
		}
		node := (&types.Node{
			ID:         id,
			Label:      strings.TrimSpace(n.Label),
			Properties: n.Properties,
		}).WithDefaults()
		known[id] = true
		bundle.Nodes = append(bundle.Nodes, node)
	}

	for _, e := range raw.Edges {
		source := strings.TrimSpace(e.Source)
		target := strings.TrimSpace(e.Target)
		relation := types.NormalizeRelation(e.Relation)
		if source == "" || target == "" || relation == "" {
			continue
		}

		confidence := 0.5
		if e.Confidence != nil {
			confidence = *e.Confidence
		}
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		bundle.Edges = append(bundle.Edges, &types.Edge{
			Source:     source,
			Target:     target,
			Relation:   relation,
			Properties: e.Properties,
			Confidence: confidence,
		})

		for _, id := range []string{source, target} {
			if known[id] {
				continue
			}
			known[id] = true
			bundle.Nodes = append(bundle.Nodes, (&types.Node{ID: id}).WithDefaults())
		}
	}

	return bundle
}
