package output

import (
	"context"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/nodes"
	"github.com/Tsinling0525/flowrun/plugin"
)

// Output marks the final result of a run. It passes through its first upstream
// input; with config merge=true it returns every upstream output keyed by node id.
type Output struct{}

func (Output) Handle(ctx context.Context, node model.Node, in plugin.Inputs) (plugin.Result, error) {
	if nodes.Bool(node.Config, "merge", false) && len(in.Upstream) > 0 {
		merged := make(map[string]any, len(in.Upstream))
		for _, u := range in.Upstream {
			merged[u.NodeID] = u.Output
		}
		return plugin.Result{Output: merged}, nil
	}
	return plugin.Result{Output: in.Primary()}, nil
}
