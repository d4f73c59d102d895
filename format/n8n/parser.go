package n8n

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/Tsinling0525/flowrun/graph"
	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/nodes"
)

// N8nWorkflow represents the n8n workflow format
type N8nWorkflow struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Active      bool                      `json:"active"`
	Nodes       []N8nNode                 `json:"nodes"`
	Connections map[string]N8nConnections `json:"connections"`
	Settings    map[string]interface{}    `json:"settings"`
}

// N8nNode represents an n8n node
type N8nNode struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	TypeVersion float64                `json:"typeVersion"`
	Position    []float64              `json:"position"`
	Parameters  map[string]interface{} `json:"parameters"`
	Credentials map[string]interface{} `json:"credentials"`
}

// N8nConnections represents n8n node connections
type N8nConnections struct {
	Main [][]N8nConnection `json:"main"`
}

// N8nConnection represents a single connection
type N8nConnection struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// N8nRequest represents the full n8n API request
type N8nRequest struct {
	Workflow N8nWorkflow            `json:"workflow"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ParseRequest decodes either a full request or a bare n8n workflow export.
func ParseRequest(raw []byte) (N8nRequest, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return N8nRequest{}, fmt.Errorf("n8n: %w", err)
	}
	var req N8nRequest
	if _, ok := probe["workflow"]; ok {
		if err := json.Unmarshal(raw, &req); err != nil {
			return N8nRequest{}, fmt.Errorf("n8n: %w", err)
		}
		return req, nil
	}
	if err := json.Unmarshal(raw, &req.Workflow); err != nil {
		return N8nRequest{}, fmt.Errorf("n8n: %w", err)
	}
	return req, nil
}

// MapType returns the node type for an n8n type such as "n8n-nodes-base.httpRequest".
// ok is false for types without an equivalent.
func MapType(n8nType string) (model.NodeType, bool) {
	short := n8nType
	if i := strings.LastIndex(short, "."); i >= 0 {
		short = short[i+1:]
	}
	switch {
	case short == "manualTrigger", short == "webhook", short == "start":
		return model.NodeInput, true
	case short == "httpRequest":
		return model.NodeHTTPRequest, true
	case short == "if":
		return model.NodeCondition, true
	case short == "set", short == "code":
		return model.NodeTransform, true
	case short == "openAi", strings.HasPrefix(short, "lmChat"):
		return model.NodePrompt, true
	case short == "noOp", short == "respondToWebhook":
		return model.NodeOutput, true
	}
	return "", false
}

// ParseWorkflow converts an n8n workflow and validates the result. Connections are
// keyed by node name in n8n and are resolved to node ids. The outputs of an "if" node
// become the "true" (main[0]) and "false" (main[1]) branches.
func ParseWorkflow(n8nWF N8nWorkflow) (*model.Workflow, error) {
	wf := &model.Workflow{ID: n8nWF.ID, Name: n8nWF.Name}
	idByName := make(map[string]string, len(n8nWF.Nodes))

	for _, n := range n8nWF.Nodes {
		id := n.ID
		if id == "" {
			id = n.Name
		}
		idByName[n.Name] = id
		t, ok := MapType(n.Type)
		if !ok {
			// Kept as is so validation reports it.
			t = model.NodeType(n.Type)
		}
		wf.Nodes = append(wf.Nodes, model.Node{
			ID:     id,
			Type:   t,
			Name:   n.Name,
			Config: convertParameters(t, n.Parameters),
		})
	}

	for _, n := range n8nWF.Nodes {
		conns, ok := n8nWF.Connections[n.Name]
		if !ok {
			continue
		}
		from := idByName[n.Name]
		t, _ := MapType(n.Type)
		for port, group := range conns.Main {
			for _, c := range group {
				to, ok := idByName[c.Node]
				if !ok {
					to = c.Node
				}
				e := model.Edge{From: from, To: to}
				if t == model.NodeCondition {
					e.Condition = branchLabel(port)
				}
				wf.Edges = append(wf.Edges, e)
			}
		}
	}

	if err := graph.Validate(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

func branchLabel(port int) string {
	switch port {
	case 0:
		return "true"
	case 1:
		return "false"
	}
	return fmt.Sprintf("output%d", port)
}

// ToDefinition converts a full request. The run input is data.input.
func ToDefinition(req N8nRequest) (*model.Workflow, string, error) {
	wf, err := ParseWorkflow(req.Workflow)
	if err != nil {
		return nil, "", err
	}
	return wf, nodes.Stringify(req.Data["input"]), nil
}

// Encode renders a workflow as a definition document.
func Encode(wf *model.Workflow) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(wf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var operations = map[string]string{
	"equal":    "equals",
	"notEqual": "not_equals",
	"contains": "contains",
	"larger":   "greater_than",
	"smaller":  "less_than",
}

func convertParameters(t model.NodeType, params map[string]any) map[string]any {
	cfg := make(map[string]any, len(params))
	for k, v := range params {
		cfg[k] = v
	}
	switch t {
	case model.NodeHTTPRequest:
		if m := nodes.String(params, "requestMethod", ""); m != "" {
			cfg["method"] = m
		}
		if b, ok := params["jsonBody"]; ok {
			cfg["body"] = nodes.Stringify(b)
		}
	case model.NodeCondition:
		if p, ok := ifPredicate(params); ok {
			cfg["predicate"] = p
		}
	case model.NodeTransform:
		// set/code nodes hand their input item on; only an explicit template reshapes it.
		if _, ok := cfg["operation"]; !ok {
			if _, ok := cfg["template"]; ok {
				cfg["operation"] = "template"
			} else {
				cfg["operation"] = "passthrough"
			}
		}
	case model.NodePrompt:
		if _, ok := cfg["prompt"]; !ok {
			if text := nodes.String(params, "text", ""); text != "" {
				cfg["prompt"] = text
			}
		}
		if m, ok := params["model"].(map[string]any); ok {
			cfg["model"] = nodes.String(m, "value", "")
		}
	}
	return cfg
}

// ifPredicate reads the first condition of an n8n v1 "if" node:
// {"conditions": {"string"|"number": [{"value1", "operation", "value2"}]}}.
func ifPredicate(params map[string]any) (map[string]any, bool) {
	conds := nodes.Map(params, "conditions")
	for _, kind := range []string{"string", "number", "boolean"} {
		list, ok := conds[kind].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		c, ok := list[0].(map[string]any)
		if !ok {
			continue
		}
		op := nodes.String(c, "operation", "equal")
		if mapped, ok := operations[op]; ok {
			op = mapped
		}
		return map[string]any{"operator": op, "value": c["value2"]}, true
	}
	return nil, false
}
