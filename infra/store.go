package infra

import (
	"context"
	"errors"

	"github.com/Tsinling0525/flowrun/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("workflow id belongs to another user")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrInputTooLarge = errors.New("input too large")
)

// WorkflowStore keeps workflow definitions.
type WorkflowStore interface {
	PutWorkflow(ctx context.Context, wf model.StoredWorkflow) error
	GetWorkflow(ctx context.Context, id string) (model.StoredWorkflow, error)
}

// Sink receives the outcome of every run. seq is the node's position in execution
// order.
type Sink interface {
	PersistExecution(ctx context.Context, res model.ExecutionResult) error
	PersistNodeResult(ctx context.Context, executionID string, seq int, r model.NodeResult) error
}

type ExecutionReader interface {
	GetExecution(ctx context.Context, id string) (model.ExecutionResult, error)
}

// Store is a persistence backend serving all three roles.
type Store interface {
	WorkflowStore
	Sink
	ExecutionReader
	Close() error
}
