package plugin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/model"
)

// Upstream is the output of a node whose edge into the current node was taken.
type Upstream struct {
	NodeID string
	Output any
}

// Inputs is everything a handler sees: the caller's run input and the outputs of
// taken upstream nodes, in execution order.
type Inputs struct {
	Run      string
	Upstream []Upstream
}

// Primary returns the first upstream output, or the run input when the node is the
// entry point.
func (in Inputs) Primary() any {
	if len(in.Upstream) == 0 {
		return in.Run
	}
	return in.Upstream[0].Output
}

func (in Inputs) Lookup(nodeID string) (any, bool) {
	for _, u := range in.Upstream {
		if u.NodeID == nodeID {
			return u.Output, true
		}
	}
	return nil, false
}

type Result struct {
	Output     any
	TokensUsed int
	Cost       decimal.Decimal
	Branch     string // condition nodes only: label of the outgoing edges to take
}

type Handler interface {
	Handle(ctx context.Context, node model.Node, in Inputs) (Result, error)
}

type HandlerFunc func(ctx context.Context, node model.Node, in Inputs) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, node model.Node, in Inputs) (Result, error) {
	return f(ctx, node, in)
}

// Deps are the external capabilities handlers may call.
type Deps struct {
	LLM  Completer
	HTTP Fetcher
}

type EventBus interface {
	Emit(ctx context.Context, event string, fields map[string]any) error
}
