package infra

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Tsinling0525/flowrun/ctxlog"
	"github.com/Tsinling0525/flowrun/engine"
	"github.com/Tsinling0525/flowrun/graph"
	"github.com/Tsinling0525/flowrun/model"
)

const (
	DefaultMaxInputChars      = 10_000
	DefaultMaxDefinitionBytes = 100 * 1024
)

type Limits struct {
	MaxInputChars      int
	MaxDefinitionBytes int
}

// Runner is the caller side of the engine: it enforces request limits, loads
// definitions, runs them and records the outcome.
type Runner struct {
	engine *engine.Engine
	store  WorkflowStore
	sink   Sink
	reader ExecutionReader
	guard  Guard
	limits Limits
	now    func() time.Time
	newID  func() string
}

type RunnerOption func(*Runner)

func WithGuard(g Guard) RunnerOption   { return func(r *Runner) { r.guard = g } }
func WithLimits(l Limits) RunnerOption { return func(r *Runner) { r.limits = l } }
func WithSink(s Sink) RunnerOption     { return func(r *Runner) { r.sink = s } }

func WithExecutionReader(er ExecutionReader) RunnerOption {
	return func(r *Runner) { r.reader = er }
}

func WithRunnerClock(now func() time.Time) RunnerOption { return func(r *Runner) { r.now = now } }

func WithWorkflowIDs(f func() string) RunnerOption { return func(r *Runner) { r.newID = f } }

// NewRunner uses store for definitions. If store is also a Sink or ExecutionReader it
// serves those roles too unless overridden by options.
func NewRunner(eng *engine.Engine, store WorkflowStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine: eng,
		store:  store,
		guard:  AllowAll{},
		limits: Limits{MaxInputChars: DefaultMaxInputChars, MaxDefinitionBytes: DefaultMaxDefinitionBytes},
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	if s, ok := store.(Sink); ok {
		r.sink = s
	}
	if er, ok := store.(ExecutionReader); ok {
		r.reader = er
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Validate parses a definition without storing it.
func (r *Runner) Validate(raw []byte) (*model.Workflow, error) {
	if err := r.checkDefinitionSize(raw); err != nil {
		return nil, err
	}
	return graph.Parse(raw)
}

// SaveWorkflow validates raw and stores it for userID. The id comes from the
// document or is generated.
func (r *Runner) SaveWorkflow(ctx context.Context, userID string, raw []byte) (model.StoredWorkflow, error) {
	wf, err := r.Validate(raw)
	if err != nil {
		return model.StoredWorkflow{}, err
	}
	now := r.now()
	sw := model.StoredWorkflow{
		ID:         wf.ID,
		UserID:     userID,
		Name:       wf.Name,
		Definition: raw,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if sw.ID == "" {
		sw.ID = r.newID()
	} else {
		existing, err := r.store.GetWorkflow(ctx, sw.ID)
		switch {
		case err == nil && existing.UserID != userID:
			return model.StoredWorkflow{}, fmt.Errorf("workflow %s: %w", sw.ID, ErrConflict)
		case err == nil:
			sw.CreatedAt = existing.CreatedAt
		case !errors.Is(err, ErrNotFound):
			return model.StoredWorkflow{}, fmt.Errorf("load workflow %s: %w", sw.ID, err)
		}
	}
	if err := r.store.PutWorkflow(ctx, sw); err != nil {
		return model.StoredWorkflow{}, fmt.Errorf("store workflow %s: %w", sw.ID, err)
	}
	ctxlog.FromContext(ctx).Info("workflow saved", "workflow_id", sw.ID, "user_id", userID, "nodes", len(wf.Nodes))
	return sw, nil
}

// Workflow returns a stored workflow owned by userID.
func (r *Runner) Workflow(ctx context.Context, userID, id string) (model.StoredWorkflow, error) {
	sw, err := r.store.GetWorkflow(ctx, id)
	if err != nil {
		return model.StoredWorkflow{}, err
	}
	if sw.UserID != userID {
		return model.StoredWorkflow{}, ErrNotFound
	}
	return sw, nil
}

// Execution returns a persisted execution owned by userID.
func (r *Runner) Execution(ctx context.Context, userID, id string) (model.ExecutionResult, error) {
	if r.reader == nil {
		return model.ExecutionResult{}, ErrNotFound
	}
	res, err := r.reader.GetExecution(ctx, id)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	if res.UserID != userID {
		return model.ExecutionResult{}, ErrNotFound
	}
	return res, nil
}

// Run executes a stored workflow. Errors are returned only when the run could not
// start; a failed run is a result with status Failed. Persistence failures are
// logged and never change the result.
func (r *Runner) Run(ctx context.Context, userID, workflowID, input string) (model.ExecutionResult, error) {
	if n := utf8.RuneCountInString(input); r.limits.MaxInputChars > 0 && n > r.limits.MaxInputChars {
		return model.ExecutionResult{}, fmt.Errorf("%w: input has %d characters, limit is %d", ErrInputTooLarge, n, r.limits.MaxInputChars)
	}
	if err := r.guard.Allow(ctx, userID); err != nil {
		return model.ExecutionResult{}, err
	}
	sw, err := r.Workflow(ctx, userID, workflowID)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("workflow %s: %w", workflowID, err)
	}
	wf, err := r.Validate(sw.Definition)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	wf.ID = sw.ID
	return r.execute(ctx, userID, wf, input)
}

// RunDefinition executes an unstored workflow, as the CLI does.
func (r *Runner) RunDefinition(ctx context.Context, userID string, wf *model.Workflow, input string) (model.ExecutionResult, error) {
	if n := utf8.RuneCountInString(input); r.limits.MaxInputChars > 0 && n > r.limits.MaxInputChars {
		return model.ExecutionResult{}, fmt.Errorf("%w: input has %d characters, limit is %d", ErrInputTooLarge, n, r.limits.MaxInputChars)
	}
	if err := r.guard.Allow(ctx, userID); err != nil {
		return model.ExecutionResult{}, err
	}
	return r.execute(ctx, userID, wf, input)
}

func (r *Runner) execute(ctx context.Context, userID string, wf *model.Workflow, input string) (model.ExecutionResult, error) {
	res, err := r.engine.Executor(userID, wf.ID).Execute(ctx, wf, input)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	r.persist(ctx, res)
	return res, nil
}

func (r *Runner) persist(ctx context.Context, res model.ExecutionResult) {
	if r.sink == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := ctxlog.FromContext(ctx).With("execution_id", res.ExecutionID)
	if err := r.sink.PersistExecution(ctx, res); err != nil {
		log.Error("persist execution failed", "error", err)
		return
	}
	for i, nr := range res.NodeResults.All() {
		if err := r.sink.PersistNodeResult(ctx, res.ExecutionID, i, nr); err != nil {
			log.Error("persist node result failed", "node_id", nr.NodeID, "error", err)
		}
	}
}

func (r *Runner) checkDefinitionSize(raw []byte) error {
	if r.limits.MaxDefinitionBytes > 0 && len(raw) > r.limits.MaxDefinitionBytes {
		return fmt.Errorf("%w: definition is %d bytes, limit is %d", ErrInputTooLarge, len(raw), r.limits.MaxDefinitionBytes)
	}
	return nil
}
