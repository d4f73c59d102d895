package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/infra"
	"github.com/Tsinling0525/flowrun/model"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	upsertWorkflowQuery = `INSERT INTO workflows (id, user_id, name, definition, created_at, updated_at)
	 VALUES ($1,$2,$3,$4,$5,$6)
	 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at`

	selectWorkflowQuery = `SELECT id, user_id, name, definition, created_at, updated_at
	 FROM workflows
	 WHERE id = $1`

	upsertExecutionQuery = `INSERT INTO executions (
		execution_id, workflow_id, user_id, status, output, total_tokens, total_cost, error_message, started_at, finished_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (execution_id) DO UPDATE SET
		status = EXCLUDED.status,
		output = EXCLUDED.output,
		total_tokens = EXCLUDED.total_tokens,
		total_cost = EXCLUDED.total_cost,
		error_message = EXCLUDED.error_message,
		finished_at = EXCLUDED.finished_at`

	insertNodeResultQuery = `INSERT INTO node_results (
		execution_id, seq, node_id, node_type, status, output, tokens_used, cost, error, branch, started_at, duration_ms
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (execution_id, seq) DO NOTHING`

	selectExecutionQuery = `SELECT execution_id, workflow_id, user_id, status, output, total_tokens, total_cost, error_message, started_at, finished_at
	 FROM executions
	 WHERE execution_id = $1`

	listNodeResultsQuery = `SELECT node_id, node_type, status, output, tokens_used, cost, error, branch, started_at, duration_ms
	 FROM node_results
	 WHERE execution_id = $1
	 ORDER BY seq ASC`
)

// Store implements infra.Store.
type Store struct {
	db     DB
	closer io.Closer
}

func New(db DB) *Store { return &Store{db: db} }

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *Store) PutWorkflow(ctx context.Context, wf model.StoredWorkflow) error {
	if wf.ID == "" {
		return errors.New("workflow id is required")
	}
	_, err := s.db.ExecContext(ctx, upsertWorkflowQuery,
		wf.ID, wf.UserID, wf.Name, wf.Definition, normalizeTime(wf.CreatedAt), normalizeTime(wf.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert workflow: %w", err)
	}
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (model.StoredWorkflow, error) {
	var wf model.StoredWorkflow
	err := s.db.QueryRowContext(ctx, selectWorkflowQuery, id).Scan(
		&wf.ID, &wf.UserID, &wf.Name, &wf.Definition, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return model.StoredWorkflow{}, handleNotFound(err)
	}
	return wf, nil
}

func (s *Store) PersistExecution(ctx context.Context, res model.ExecutionResult) error {
	output, err := encodeOutput(res.Output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	var finished sql.NullTime
	if !res.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: res.FinishedAt.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, upsertExecutionQuery,
		res.ExecutionID, res.WorkflowID, res.UserID, string(res.Status), output,
		res.TotalTokens, res.TotalCost, nullIfEmpty(res.ErrorMessage), normalizeTime(res.StartedAt), finished)
	if err != nil {
		return fmt.Errorf("upsert execution: %w", err)
	}
	return nil
}

func (s *Store) PersistNodeResult(ctx context.Context, executionID string, seq int, r model.NodeResult) error {
	output, err := encodeOutput(r.Output)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertNodeResultQuery,
		executionID, seq, r.NodeID, string(r.Type), string(r.Status), output, r.TokensUsed, r.Cost,
		nullIfEmpty(r.Error), nullIfEmpty(r.Branch), normalizeTime(r.StartedAt), r.DurationMS)
	if err != nil {
		return fmt.Errorf("insert node result: %w", err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (model.ExecutionResult, error) {
	var (
		res      model.ExecutionResult
		status   string
		output   []byte
		errMsg   sql.NullString
		finished sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, selectExecutionQuery, id).Scan(
		&res.ExecutionID, &res.WorkflowID, &res.UserID, &status, &output,
		&res.TotalTokens, &res.TotalCost, &errMsg, &res.StartedAt, &finished)
	if err != nil {
		return model.ExecutionResult{}, handleNotFound(err)
	}
	res.Status = model.ExecutionStatus(status)
	res.ErrorMessage = errMsg.String
	if finished.Valid {
		res.FinishedAt = finished.Time
	}
	if res.Output, err = decodeOutput(output); err != nil {
		return model.ExecutionResult{}, fmt.Errorf("decode output: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, listNodeResultsQuery, id)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("list node results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanNodeResult(rows)
		if err != nil {
			return model.ExecutionResult{}, err
		}
		res.NodeResults.Set(r)
	}
	if err := rows.Err(); err != nil {
		return model.ExecutionResult{}, fmt.Errorf("list node results: %w", err)
	}
	return res, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNodeResult(sc scanner) (model.NodeResult, error) {
	var (
		r              model.NodeResult
		nodeType       string
		status         string
		output         []byte
		errMsg, branch sql.NullString
		cost           decimal.Decimal
	)
	if err := sc.Scan(&r.NodeID, &nodeType, &status, &output, &r.TokensUsed, &cost,
		&errMsg, &branch, &r.StartedAt, &r.DurationMS); err != nil {
		return model.NodeResult{}, fmt.Errorf("scan node result: %w", err)
	}
	r.Type = model.NodeType(nodeType)
	r.Status = model.NodeStatus(status)
	r.Cost = cost
	r.Error = errMsg.String
	r.Branch = branch.String
	var err error
	if r.Output, err = decodeOutput(output); err != nil {
		return model.NodeResult{}, fmt.Errorf("decode node output: %w", err)
	}
	return r, nil
}

// encodeOutput returns nil for a nil output so the column stays NULL.
func encodeOutput(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeOutput(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return infra.ErrNotFound
	}
	return err
}

var _ infra.Store = (*Store)(nil)
