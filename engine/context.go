package engine

import (
	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/model"
)

// execContext is the mutable state of a single run. Only the executor loop writes
// to it, one node at a time.
type execContext struct {
	results     model.NodeResults
	doomed      map[string]bool // pre-marked Skipped, not yet reached by the loop
	totalTokens int
	totalCost   decimal.Decimal
	status      model.ExecutionStatus
	errMsg      string

	output     any
	haveOutput bool // an output node has succeeded
	last       any  // output of the last node that ran
}

func newExecContext() *execContext {
	return &execContext{
		doomed:    map[string]bool{},
		totalCost: decimal.Zero,
		status:    model.ExecutionRunning,
	}
}

func (c *execContext) record(r model.NodeResult) {
	c.results.Set(r)
	if r.Status != model.NodeSucceeded {
		return
	}
	c.totalTokens += r.TokensUsed
	c.totalCost = c.totalCost.Add(r.Cost)
	c.last = r.Output
	if r.Type == model.NodeOutput {
		c.output = r.Output
		c.haveOutput = true
	}
}

func (c *execContext) fail(msg string) {
	c.status = model.ExecutionFailed
	c.errMsg = msg
}

func (c *execContext) complete() {
	c.status = model.ExecutionCompleted
	if !c.haveOutput {
		c.output = c.last
	}
}
