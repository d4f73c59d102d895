package engine

import (
	"fmt"

	"github.com/Tsinling0525/flowrun/graph"
	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

// plan is the static shape of one run: the execution order and, per node, the edges
// coming into it.
type plan struct {
	order    []model.Node
	entry    string
	incoming map[string][]model.Edge
	types    map[string]model.NodeType
}

func newPlan(wf *model.Workflow) (*plan, error) {
	order, err := graph.Order(wf)
	if err != nil {
		return nil, err
	}
	entry, err := graph.Entry(wf)
	if err != nil {
		return nil, err
	}
	p := &plan{
		order:    order,
		entry:    entry.ID,
		incoming: make(map[string][]model.Edge, len(wf.Nodes)),
		types:    make(map[string]model.NodeType, len(wf.Nodes)),
	}
	for _, n := range wf.Nodes {
		p.types[n.ID] = n.Type
	}
	for _, e := range wf.Edges {
		p.incoming[e.To] = append(p.incoming[e.To], e)
	}
	return p, nil
}

// taken reports whether an edge carries data given its source's recorded result.
// Edges out of a condition node are taken when unlabelled or when the label matches
// the branch the condition selected.
func (p *plan) taken(e model.Edge, src model.NodeResult) bool {
	if src.Status != model.NodeSucceeded {
		return false
	}
	if p.types[e.From] != model.NodeCondition || e.Condition == nil {
		return true
	}
	return fmt.Sprint(e.Condition) == src.Branch
}

// dead reports whether an edge can never be taken: its source was skipped, or its
// source is a resolved condition that picked another branch.
func (p *plan) dead(e model.Edge, c *execContext) bool {
	if c.doomed[e.From] {
		return true
	}
	src, ok := c.results.Get(e.From)
	if !ok {
		return false
	}
	switch src.Status {
	case model.NodeSkipped:
		return true
	case model.NodeSucceeded:
		return !p.taken(e, src)
	}
	return false
}

// propagateSkips walks the nodes after position from and marks every node whose
// incoming edges are all dead. The walk follows topological order, so a single pass
// also catches nodes that only depend on freshly marked ones.
func (p *plan) propagateSkips(from int, c *execContext) {
	for _, n := range p.order[from:] {
		if c.doomed[n.ID] || n.ID == p.entry {
			continue
		}
		if _, done := c.results.Get(n.ID); done {
			continue
		}
		in := p.incoming[n.ID]
		if len(in) == 0 {
			continue
		}
		allDead := true
		for _, e := range in {
			if !p.dead(e, c) {
				allDead = false
				break
			}
		}
		if allDead {
			c.doomed[n.ID] = true
		}
	}
}

// upstream collects the outputs flowing into n along taken edges, in execution order.
func (p *plan) upstream(n model.Node, c *execContext) []plugin.Upstream {
	var out []plugin.Upstream
	seen := map[string]bool{}
	for _, id := range c.results.IDs() {
		for _, e := range p.incoming[n.ID] {
			if e.From != id || seen[id] {
				continue
			}
			src, _ := c.results.Get(id)
			if p.taken(e, src) {
				out = append(out, plugin.Upstream{NodeID: id, Output: src.Output})
				seen[id] = true
			}
		}
	}
	return out
}
