package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type NodeStatus string

const (
	NodeSucceeded NodeStatus = "Succeeded"
	NodeFailed    NodeStatus = "Failed"
	NodeSkipped   NodeStatus = "Skipped"
)

type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "Running"
	ExecutionCompleted ExecutionStatus = "Completed"
	ExecutionFailed    ExecutionStatus = "Failed"
)

func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

type NodeResult struct {
	NodeID     string          `json:"nodeId"`
	Type       NodeType        `json:"type"`
	Output     any             `json:"output,omitempty"`
	TokensUsed int             `json:"tokensUsed"`
	Cost       decimal.Decimal `json:"cost"`
	Status     NodeStatus      `json:"status"`
	Error      string          `json:"error,omitempty"`
	Branch     string          `json:"branch,omitempty"` // label selected by a condition node
	StartedAt  time.Time       `json:"startedAt"`
	DurationMS int64           `json:"durationMs"`
}

// NodeResults maps node ids to results and remembers the order they were recorded in.
// Its JSON form is an array so the execution order survives a round trip.
type NodeResults struct {
	order []string
	m     map[string]NodeResult
}

// Set records r under r.NodeID. Re-setting an id keeps its original position.
func (rs *NodeResults) Set(r NodeResult) {
	if rs.m == nil {
		rs.m = make(map[string]NodeResult)
	}
	if _, ok := rs.m[r.NodeID]; !ok {
		rs.order = append(rs.order, r.NodeID)
	}
	rs.m[r.NodeID] = r
}

func (rs NodeResults) Get(id string) (NodeResult, bool) {
	r, ok := rs.m[id]
	return r, ok
}

func (rs NodeResults) Len() int { return len(rs.order) }

// IDs returns node ids in recording order.
func (rs NodeResults) IDs() []string { return append([]string(nil), rs.order...) }

// All returns results in recording order.
func (rs NodeResults) All() []NodeResult {
	out := make([]NodeResult, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.m[id])
	}
	return out
}

// ExecutionResult is what one run returns to its caller and what gets persisted.
type ExecutionResult struct {
	ExecutionID  string          `json:"executionId"`
	WorkflowID   string          `json:"workflowId,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	Output       any             `json:"output"`
	NodeResults  NodeResults     `json:"nodeResults"`
	TotalTokens  int             `json:"totalTokens"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	Status       ExecutionStatus `json:"status"`
	ErrorMessage string          `json:"errorMessage"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
}
