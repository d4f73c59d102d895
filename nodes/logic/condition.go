package logic

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/nodes"
	"github.com/Tsinling0525/flowrun/plugin"
)

// Condition evaluates a predicate against its primary input and selects the
// outgoing branch. The input is passed through unchanged.
// Config:
// - predicate: {field, operator, value}, branch is "true" or "false"
// - cases: [{label, predicate}], branch is the first matching label
// - default: string, branch when no case matches (default: "default")
//
// field is a dotted path into the input; empty compares the whole value.
type Condition struct{}

func (Condition) Handle(ctx context.Context, node model.Node, in plugin.Inputs) (plugin.Result, error) {
	subject := in.Primary()
	branch, err := selectBranch(node.Config, subject)
	if err != nil {
		return plugin.Result{}, err
	}
	return plugin.Result{Output: subject, Branch: branch}, nil
}

func selectBranch(cfg map[string]any, subject any) (string, error) {
	if raw, ok := cfg["cases"]; ok {
		cases, ok := raw.([]any)
		if !ok {
			return "", fmt.Errorf("config.cases must be an array")
		}
		for i, c := range cases {
			cm, ok := c.(map[string]any)
			if !ok {
				return "", fmt.Errorf("cases[%d] must be an object", i)
			}
			label := nodes.String(cm, "label", "")
			if label == "" {
				return "", fmt.Errorf("cases[%d].label is required", i)
			}
			p, err := parsePredicate(nodes.Map(cm, "predicate"))
			if err != nil {
				return "", fmt.Errorf("cases[%d]: %w", i, err)
			}
			hit, err := p.eval(subject)
			if err != nil {
				return "", fmt.Errorf("cases[%d]: %w", i, err)
			}
			if hit {
				return label, nil
			}
		}
		return nodes.String(cfg, "default", "default"), nil
	}

	p, err := parsePredicate(nodes.Map(cfg, "predicate"))
	if err != nil {
		return "", err
	}
	hit, err := p.eval(subject)
	if err != nil {
		return "", err
	}
	if hit {
		return "true", nil
	}
	return "false", nil
}

type predicate struct {
	field string
	op    string
	value any
}

var operators = map[string]string{
	"equals": "equals", "eq": "equals", "==": "equals",
	"not_equals": "not_equals", "ne": "not_equals", "!=": "not_equals",
	"contains":     "contains",
	"greater_than": "greater_than", "gt": "greater_than", ">": "greater_than",
	"less_than": "less_than", "lt": "less_than", "<": "less_than",
}

func parsePredicate(m map[string]any) (predicate, error) {
	if m == nil {
		return predicate{}, fmt.Errorf("config.predicate is required")
	}
	name := strings.ToLower(nodes.String(m, "operator", ""))
	op, ok := operators[name]
	if !ok {
		return predicate{}, fmt.Errorf("unknown operator %q", name)
	}
	return predicate{field: nodes.String(m, "field", ""), op: op, value: m["value"]}, nil
}

func (p predicate) eval(subject any) (bool, error) {
	left, ok := nodes.Lookup(subject, p.field)
	if !ok {
		left = nil
	}
	switch p.op {
	case "equals":
		return equal(left, p.value), nil
	case "not_equals":
		return !equal(left, p.value), nil
	case "contains":
		if list, ok := left.([]any); ok {
			for _, item := range list {
				if equal(item, p.value) {
					return true, nil
				}
			}
			return false, nil
		}
		return strings.Contains(nodes.Stringify(left), nodes.Stringify(p.value)), nil
	}

	a, okA := nodes.Number(left)
	b, okB := nodes.Number(p.value)
	if !okA || !okB {
		return false, fmt.Errorf("%s needs numbers, got %q and %q", p.op, nodes.Stringify(left), nodes.Stringify(p.value))
	}
	if p.op == "greater_than" {
		return a > b, nil
	}
	return a < b, nil
}

// equal compares numerically when both sides are numbers, otherwise by their
// string form.
func equal(a, b any) bool {
	if x, ok := nodes.Number(a); ok {
		if y, ok := nodes.Number(b); ok {
			return x == y
		}
	}
	return nodes.Stringify(a) == nodes.Stringify(b)
}
