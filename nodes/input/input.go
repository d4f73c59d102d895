package input

import (
	"context"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

// Input seeds the run with the caller-supplied input, unchanged.
type Input struct{}

func (Input) Handle(ctx context.Context, node model.Node, in plugin.Inputs) (plugin.Result, error) {
	return plugin.Result{Output: in.Run}, nil
}
