package graph

import (
	"fmt"

	"github.com/Tsinling0525/flowrun/model"
)

// Validate checks the structural invariants of a workflow: unique node ids, known node
// types, edges between existing nodes, branch labels only on condition edges, no
// cycles, and a single entry point.
func Validate(wf *model.Workflow) error {
	if wf == nil {
		return defErr(ErrMalformed, "definition is nil")
	}
	seen := make(map[string]bool, len(wf.Nodes))
	var dups, unknown []string
	for _, n := range wf.Nodes {
		if n.ID == "" {
			return defErr(ErrMalformed, "node without id")
		}
		if seen[n.ID] {
			dups = append(dups, n.ID)
		}
		seen[n.ID] = true
		if _, ok := model.ParseNodeType(string(n.Type)); !ok {
			unknown = append(unknown, n.ID)
		}
	}
	if len(dups) > 0 {
		return defErr(ErrDuplicateNode, "", dups...)
	}
	if len(unknown) > 0 {
		return defErr(ErrUnknownType, "", unknown...)
	}

	for i, e := range wf.Edges {
		var missing []string
		if !seen[e.From] {
			missing = append(missing, e.From)
		}
		if !seen[e.To] {
			missing = append(missing, e.To)
		}
		if len(missing) > 0 {
			return defErr(ErrDanglingEdge, fmt.Sprintf("edge %d %q -> %q", i, e.From, e.To), missing...)
		}
		if e.Condition != nil {
			if src, _ := wf.Node(e.From); src.Type != model.NodeCondition {
				return defErr(ErrInvalidEdge, fmt.Sprintf("edge %d carries a condition but %q is not a condition node", i, e.From), e.From)
			}
		}
	}

	if _, err := Order(wf); err != nil {
		return err
	}
	_, err := Entry(wf)
	return err
}

// Entry returns the single node without incoming edges.
func Entry(wf *model.Workflow) (model.Node, error) {
	hasIncoming := make(map[string]bool, len(wf.Nodes))
	for _, e := range wf.Edges {
		hasIncoming[e.To] = true
	}
	var roots []string
	for _, n := range wf.Nodes {
		if !hasIncoming[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	switch len(roots) {
	case 1:
		n, _ := wf.Node(roots[0])
		return n, nil
	case 0:
		return model.Node{}, defErr(ErrEntryPoint, "no node without incoming edges")
	default:
		return model.Node{}, defErr(ErrEntryPoint, fmt.Sprintf("%d candidate entry nodes", len(roots)), roots...)
	}
}
