// Package builtin wires the handler for every node type into a registry.
package builtin

import (
	"github.com/Tsinling0525/flowrun/model"
	httpnode "github.com/Tsinling0525/flowrun/nodes/http"
	"github.com/Tsinling0525/flowrun/nodes/input"
	"github.com/Tsinling0525/flowrun/nodes/llm"
	"github.com/Tsinling0525/flowrun/nodes/logic"
	"github.com/Tsinling0525/flowrun/nodes/output"
	"github.com/Tsinling0525/flowrun/nodes/transform"
	"github.com/Tsinling0525/flowrun/plugin"
)

func Registry(deps plugin.Deps) *plugin.Registry {
	r := plugin.NewRegistry()
	r.Register(model.NodeInput, input.Input{})
	r.Register(model.NodePrompt, llm.NewPrompt(deps.LLM))
	r.Register(model.NodeHTTPRequest, httpnode.NewHttpRequest(deps.HTTP))
	r.Register(model.NodeCondition, logic.Condition{})
	r.Register(model.NodeTransform, transform.Transform{})
	r.Register(model.NodeOutput, output.Output{})
	return r
}
