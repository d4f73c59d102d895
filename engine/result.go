package engine

import (
	"time"

	"github.com/Tsinling0525/flowrun/model"
)

func (x *Executor) assemble(execID string, c *execContext, startedAt, finishedAt time.Time) model.ExecutionResult {
	res := model.ExecutionResult{
		ExecutionID:  execID,
		WorkflowID:   x.workflowID,
		UserID:       x.userID,
		NodeResults:  c.results,
		TotalTokens:  c.totalTokens,
		TotalCost:    c.totalCost,
		Status:       c.status,
		ErrorMessage: c.errMsg,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}
	if c.status == model.ExecutionCompleted {
		res.Output = c.output
	}
	return res
}
