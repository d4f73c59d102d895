package graph

import "github.com/Tsinling0525/flowrun/model"

// Order returns the nodes in topological order (Kahn). Among nodes that are ready at
// the same time the one declared first goes first, so the order is deterministic.
// Nodes left unordered form or depend on a cycle and are reported.
func Order(wf *model.Workflow) ([]model.Node, error) {
	index := make(map[string]int, len(wf.Nodes))
	for i, n := range wf.Nodes {
		index[n.ID] = i
	}
	indeg := make([]int, len(wf.Nodes))
	out := make([][]int, len(wf.Nodes))
	for _, e := range wf.Edges {
		from, ok1 := index[e.From]
		to, ok2 := index[e.To]
		if !ok1 || !ok2 {
			continue
		}
		out[from] = append(out[from], to)
		indeg[to]++
	}

	// ready is kept sorted by declaration index
	var ready []int
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]model.Node, 0, len(wf.Nodes))
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		order = append(order, wf.Nodes[v])
		for _, u := range out[v] {
			indeg[u]--
			if indeg[u] == 0 {
				ready = insertSorted(ready, u)
			}
		}
	}

	if len(order) != len(wf.Nodes) {
		var stuck []string
		for i, d := range indeg {
			if d > 0 {
				stuck = append(stuck, wf.Nodes[i].ID)
			}
		}
		return nil, defErr(ErrCycle, "", stuck...)
	}
	return order, nil
}

func insertSorted(s []int, v int) []int {
	i := len(s)
	for i > 0 && s[i-1] > v {
		i--
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
