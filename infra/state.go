package infra

import (
	"context"
	"sync"

	"github.com/Tsinling0525/flowrun/model"
)

// MemStore is an in-memory Store.
type MemStore struct {
	mu         sync.RWMutex
	workflows  map[string]model.StoredWorkflow
	executions map[string]model.ExecutionResult
	nodes      map[string][]model.NodeResult
}

func NewMemStore() *MemStore {
	return &MemStore{
		workflows:  map[string]model.StoredWorkflow{},
		executions: map[string]model.ExecutionResult{},
		nodes:      map[string][]model.NodeResult{},
	}
}

func (s *MemStore) PutWorkflow(ctx context.Context, wf model.StoredWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf.Definition = append([]byte(nil), wf.Definition...)
	s.workflows[wf.ID] = wf
	return nil
}

func (s *MemStore) GetWorkflow(ctx context.Context, id string) (model.StoredWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return model.StoredWorkflow{}, ErrNotFound
	}
	return wf, nil
}

func (s *MemStore) PersistExecution(ctx context.Context, res model.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[res.ExecutionID] = res
	delete(s.nodes, res.ExecutionID)
	return nil
}

func (s *MemStore) PersistNodeResult(ctx context.Context, executionID string, seq int, r model.NodeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.nodes[executionID]
	for len(list) <= seq {
		list = append(list, model.NodeResult{})
	}
	list[seq] = r
	s.nodes[executionID] = list
	return nil
}

// GetExecution returns the execution with node results as persisted row by row.
func (s *MemStore) GetExecution(ctx context.Context, id string) (model.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.executions[id]
	if !ok {
		return model.ExecutionResult{}, ErrNotFound
	}
	if rows, ok := s.nodes[id]; ok {
		var rs model.NodeResults
		for _, r := range rows {
			if r.NodeID != "" {
				rs.Set(r)
			}
		}
		res.NodeResults = rs
	}
	return res, nil
}

func (s *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
