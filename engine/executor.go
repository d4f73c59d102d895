package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/ctxlog"
	"github.com/Tsinling0525/flowrun/graph"
	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

type Engine struct {
	reg         *plugin.Registry
	bus         plugin.EventBus
	nodeTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

type Option func(*Engine)

func WithBus(bus plugin.EventBus) Option { return func(e *Engine) { e.bus = bus } }

// WithNodeTimeout bounds every handler call that has no timeout of its own.
func WithNodeTimeout(d time.Duration) Option { return func(e *Engine) { e.nodeTimeout = d } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// New returns an engine dispatching to reg. Every node type must have a handler.
func New(reg *plugin.Registry, opts ...Option) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("engine: registry is required")
	}
	if missing := reg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("engine: no handler registered for node types %v", missing)
	}
	e := &Engine{
		reg:   reg,
		bus:   nullBus{},
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Executor runs workflows on behalf of one user and one stored workflow.
type Executor struct {
	e          *Engine
	userID     string
	workflowID string
}

func (e *Engine) Executor(userID, workflowID string) *Executor {
	return &Executor{e: e, userID: userID, workflowID: workflowID}
}

// Execute runs every node of wf once, in topological order, and reports the outcome.
// Node failures end the run and are reported in the result; the returned error is
// non-nil only when wf itself is not a valid definition.
func (x *Executor) Execute(ctx context.Context, wf *model.Workflow, input string) (model.ExecutionResult, error) {
	if err := graph.Validate(wf); err != nil {
		return model.ExecutionResult{}, err
	}
	p, err := newPlan(wf)
	if err != nil {
		return model.ExecutionResult{}, err
	}

	execID := x.e.newID()
	logger := ctxlog.FromContext(ctx).With("execution_id", execID, "workflow_id", x.workflowID, "user_id", x.userID)
	startedAt := x.e.now()
	c := newExecContext()

	for i, node := range p.order {
		if c.doomed[node.ID] {
			c.record(model.NodeResult{NodeID: node.ID, Type: node.Type, Status: model.NodeSkipped, Cost: decimal.Zero, StartedAt: x.e.now()})
			x.emit(ctx, "node_skipped", execID, node, nil)
			logger.Debug("node skipped", "node_id", node.ID)
			continue
		}

		in := plugin.Inputs{Run: input}
		if node.ID != p.entry {
			in.Upstream = p.upstream(node, c)
			if len(in.Upstream) == 0 {
				// Only reachable through branches that were not taken.
				c.record(model.NodeResult{NodeID: node.ID, Type: node.Type, Status: model.NodeSkipped, Cost: decimal.Zero, StartedAt: x.e.now()})
				x.emit(ctx, "node_skipped", execID, node, nil)
				p.propagateSkips(i+1, c)
				continue
			}
		}

		if err := ctx.Err(); err != nil {
			c.fail(fmt.Sprintf("execution cancelled before node %q: %v", node.ID, err))
			logger.Warn("execution cancelled", "node_id", node.ID, "error", err)
			break
		}

		x.emit(ctx, "node_started", execID, node, nil)
		r := x.run(ctx, node, in)
		c.record(r)

		if r.Status == model.NodeFailed {
			c.fail(fmt.Sprintf("node %q failed: %s", node.ID, r.Error))
			x.emit(ctx, "node_failed", execID, node, map[string]any{"error": r.Error, "duration_ms": r.DurationMS})
			logger.Error("node failed", "node_id", node.ID, "node_type", node.Type, "error", r.Error)
			break
		}
		x.emit(ctx, "node_completed", execID, node, map[string]any{
			"tokens":      r.TokensUsed,
			"cost":        r.Cost.String(),
			"duration_ms": r.DurationMS,
		})
		logger.Debug("node completed", "node_id", node.ID, "node_type", node.Type, "tokens", r.TokensUsed)

		if node.Type == model.NodeCondition {
			p.propagateSkips(i+1, c)
		}
	}

	if c.status == model.ExecutionRunning {
		c.complete()
	}
	finishedAt := x.e.now()
	res := x.assemble(execID, c, startedAt, finishedAt)

	_ = x.e.bus.Emit(ctx, "execution_completed", map[string]any{
		"exec":        execID,
		"workflow":    x.workflowID,
		"user":        x.userID,
		"status":      string(res.Status),
		"tokens":      res.TotalTokens,
		"cost":        res.TotalCost.String(),
		"duration_ms": finishedAt.Sub(startedAt).Milliseconds(),
	})
	logger.Info("execution finished", "status", res.Status, "nodes", res.NodeResults.Len(), "tokens", res.TotalTokens, "cost", res.TotalCost.String())
	return res, nil
}

// run dispatches one node to its handler. Handler errors and panics become a Failed
// result.
func (x *Executor) run(ctx context.Context, node model.Node, in plugin.Inputs) (r model.NodeResult) {
	started := x.e.now()
	r = model.NodeResult{NodeID: node.ID, Type: node.Type, Cost: decimal.Zero, StartedAt: started}
	defer func() {
		if rec := recover(); rec != nil {
			r.Status = model.NodeFailed
			r.Output = nil
			r.TokensUsed = 0
			r.Cost = decimal.Zero
			r.Error = fmt.Sprintf("handler panic: %v", rec)
		}
		r.DurationMS = x.e.now().Sub(started).Milliseconds()
	}()

	h, ok := x.e.reg.Lookup(node.Type)
	if !ok {
		// New and Validate make this unreachable.
		panic(fmt.Sprintf("engine: no handler for node type %q", node.Type))
	}

	runCtx := ctx
	timeout := node.Timeout()
	if timeout == 0 {
		timeout = x.e.nodeTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := h.Handle(runCtx, node, in)
	if err != nil {
		r.Status = model.NodeFailed
		r.Error = err.Error()
		return r
	}
	r.Status = model.NodeSucceeded
	r.Output = out.Output
	r.TokensUsed = out.TokensUsed
	r.Cost = out.Cost
	r.Branch = out.Branch
	return r
}

func (x *Executor) emit(ctx context.Context, event, execID string, node model.Node, extra map[string]any) {
	fields := map[string]any{"exec": execID, "node": node.ID, "type": string(node.Type)}
	for k, v := range extra {
		fields[k] = v
	}
	_ = x.e.bus.Emit(ctx, event, fields)
}

type nullBus struct{}

func (nullBus) Emit(context.Context, string, map[string]any) error { return nil }
