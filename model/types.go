package model

import "time"

type NodeType string

const (
	NodeInput       NodeType = "input"
	NodePrompt      NodeType = "prompt"
	NodeHTTPRequest NodeType = "http_request"
	NodeCondition   NodeType = "condition"
	NodeTransform   NodeType = "transform"
	NodeOutput      NodeType = "output"
)

var nodeTypes = []NodeType{NodeInput, NodePrompt, NodeHTTPRequest, NodeCondition, NodeTransform, NodeOutput}

// NodeTypes returns every node type the engine knows how to run.
func NodeTypes() []NodeType { return append([]NodeType(nil), nodeTypes...) }

func ParseNodeType(s string) (NodeType, bool) {
	for _, t := range nodeTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition any    `json:"condition,omitempty"` // branch label, only on edges leaving a condition node
}

type Node struct {
	ID             string         `json:"id"`
	Type           NodeType       `json:"type"`
	Name           string         `json:"name,omitempty"`
	Config         map[string]any `json:"config,omitempty"`
	TimeoutSeconds float64        `json:"timeoutSeconds,omitempty"` // 0 = engine default
}

// Timeout converts TimeoutSeconds into a duration.
func (n Node) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(n.TimeoutSeconds * float64(time.Second))
}

// Workflow is a workflow definition: typed nodes joined by directed edges.
type Workflow struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given id.
func (w *Workflow) Node(id string) (Node, bool) {
	if i := w.Index(id); i >= 0 {
		return w.Nodes[i], true
	}
	return Node{}, false
}

// Index returns the declaration index of a node, or -1.
func (w *Workflow) Index(id string) int {
	for i, n := range w.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// StoredWorkflow is a definition as kept by a workflow store, owned by one user.
type StoredWorkflow struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Definition []byte    `json:"definition"` // raw JSON document
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
