package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/nodes"
	"github.com/Tsinling0525/flowrun/plugin"
)

// Transform reshapes its input without calling anything external.
// Config:
// - operation: passthrough | pick | template | concat | upper | lower | trim | json_parse
// - field: string (pick: dotted path into the primary input)
// - template: string (template)
// - separator: string (concat, default "")
type Transform struct{}

func (Transform) Handle(ctx context.Context, node model.Node, in plugin.Inputs) (plugin.Result, error) {
	op := nodes.String(node.Config, "operation", "")
	out, err := apply(op, node.Config, in)
	if err != nil {
		return plugin.Result{}, fmt.Errorf("transform %s: %w", op, err)
	}
	return plugin.Result{Output: out}, nil
}

func apply(op string, cfg map[string]any, in plugin.Inputs) (any, error) {
	switch op {
	case "passthrough":
		return in.Primary(), nil
	case "pick":
		field := nodes.String(cfg, "field", "")
		if field == "" {
			return nil, fmt.Errorf("config.field is required")
		}
		v, ok := nodes.Lookup(in.Primary(), field)
		if !ok {
			return nil, fmt.Errorf("field %q not found", field)
		}
		return v, nil
	case "template":
		tpl, ok := cfg["template"].(string)
		if !ok {
			return nil, fmt.Errorf("config.template is required")
		}
		return nodes.Render(tpl, in)
	case "concat":
		parts := make([]string, 0, len(in.Upstream))
		for _, u := range in.Upstream {
			parts = append(parts, nodes.Stringify(u.Output))
		}
		if len(parts) == 0 {
			parts = append(parts, in.Run)
		}
		return strings.Join(parts, nodes.String(cfg, "separator", "")), nil
	case "upper":
		return strings.ToUpper(nodes.Stringify(in.Primary())), nil
	case "lower":
		return strings.ToLower(nodes.Stringify(in.Primary())), nil
	case "trim":
		return strings.TrimSpace(nodes.Stringify(in.Primary())), nil
	case "json_parse":
		return nodes.DecodeJSON(nodes.Stringify(in.Primary()))
	case "":
		return nil, fmt.Errorf("config.operation is required")
	}
	return nil, fmt.Errorf("unknown operation")
}
