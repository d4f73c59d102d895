package graph

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Tsinling0525/flowrun/model"
)

type rawNode struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Config         map[string]any `json:"config"`
	TimeoutSeconds float64        `json:"timeoutSeconds"`
}

// Parse decodes a stored workflow document and validates it. No workflow is returned
// unless every structural check passes.
func Parse(raw []byte) (*model.Workflow, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, defErr(ErrMalformed, "definition is not a JSON object: "+err.Error())
	}
	nodesRaw, err := sequence(doc, "nodes")
	if err != nil {
		return nil, err
	}
	edgesRaw, err := sequence(doc, "edges")
	if err != nil {
		return nil, err
	}

	var nodes []rawNode
	if err := json.Unmarshal(nodesRaw, &nodes); err != nil {
		return nil, defErr(ErrMalformed, "nodes: "+err.Error())
	}
	var edges []model.Edge
	if err := json.Unmarshal(edgesRaw, &edges); err != nil {
		return nil, defErr(ErrMalformed, "edges: "+err.Error())
	}

	wf := &model.Workflow{
		Nodes: make([]model.Node, 0, len(nodes)),
		Edges: edges,
	}
	for key, dst := range map[string]*string{"id": &wf.ID, "name": &wf.Name} {
		if v, ok := doc[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				return nil, defErr(ErrMalformed, key+" must be a string")
			}
		}
	}

	var unknown []string
	for i, n := range nodes {
		if n.ID == "" {
			return nil, defErr(ErrMalformed, fmt.Sprintf("node at index %d has no id", i))
		}
		t, ok := model.ParseNodeType(n.Type)
		if !ok {
			unknown = append(unknown, n.ID)
		}
		wf.Nodes = append(wf.Nodes, model.Node{
			ID:             n.ID,
			Type:           t,
			Name:           n.Name,
			Config:         n.Config,
			TimeoutSeconds: n.TimeoutSeconds,
		})
	}
	if len(unknown) > 0 {
		return nil, defErr(ErrUnknownType, "", unknown...)
	}

	if err := Validate(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func sequence(doc map[string]json.RawMessage, key string) (json.RawMessage, error) {
	v, ok := doc[key]
	if !ok {
		return nil, defErr(ErrMalformed, fmt.Sprintf("%q is required", key))
	}
	trimmed := bytes.TrimSpace(v)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, defErr(ErrMalformed, fmt.Sprintf("%q must be an array", key))
	}
	return trimmed, nil
}
