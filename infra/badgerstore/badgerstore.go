// Package badgerstore is an embedded infra.Store on BadgerDB, for single-binary and
// CLI use.
package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/goccy/go-json"

	"github.com/Tsinling0525/flowrun/infra"
	"github.com/Tsinling0525/flowrun/model"
)

// Key layout:
//
//	wf/<workflowID>            StoredWorkflow
//	exec/<executionID>         ExecutionResult
//	node/<executionID>/<seq>   NodeResult, seq zero padded so keys sort in order
const (
	workflowPrefix  = "wf/"
	executionPrefix = "exec/"
	nodePrefix      = "node/"
)

type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store in dir. An empty dir keeps everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func nodeKeyPrefix(execID string) []byte { return []byte(nodePrefix + execID + "/") }

func nodeKey(execID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s/%06d", nodePrefix, execID, seq))
}

func (s *Store) PutWorkflow(ctx context.Context, wf model.StoredWorkflow) error {
	if wf.ID == "" {
		return errors.New("workflow id is required")
	}
	return s.put([]byte(workflowPrefix+wf.ID), wf)
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (model.StoredWorkflow, error) {
	var wf model.StoredWorkflow
	if err := s.get([]byte(workflowPrefix+id), &wf); err != nil {
		return model.StoredWorkflow{}, err
	}
	return wf, nil
}

// PersistExecution writes the execution record and drops node rows left by an
// earlier write of the same execution.
func (s *Store) PersistExecution(ctx context.Context, res model.ExecutionResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode execution: %w", err)
	}
	stale, err := s.keysWithPrefix(nodeKeyPrefix(res.ExecutionID))
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Set([]byte(executionPrefix+res.ExecutionID), data)
	})
}

func (s *Store) PersistNodeResult(ctx context.Context, executionID string, seq int, r model.NodeResult) error {
	return s.put(nodeKey(executionID, seq), r)
}

// GetExecution prefers the node rows over the node results embedded in the
// execution record.
func (s *Store) GetExecution(ctx context.Context, id string) (model.ExecutionResult, error) {
	var res model.ExecutionResult
	if err := s.get([]byte(executionPrefix+id), &res); err != nil {
		return model.ExecutionResult{}, err
	}

	var rows model.NodeResults
	prefix := nodeKeyPrefix(id)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r model.NodeResult
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &r) }); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			rows.Set(r)
		}
		return nil
	})
	if err != nil {
		return model.ExecutionResult{}, err
	}
	if rows.Len() > 0 {
		res.NodeResults = rows
	}
	return res, nil
}

func (s *Store) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error { return txn.Set(key, data) })
}

func (s *Store) get(key []byte, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return infra.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(b []byte) error { return json.Unmarshal(b, v) })
	})
}

func (s *Store) keysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

var _ infra.Store = (*Store)(nil)
