package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/model"
)

func ids(nodes []model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestParse_Linear(t *testing.T) {
	raw := []byte(`{
		"id": "wf1",
		"name": "hello",
		"nodes": [
			{"id": "in", "type": "input"},
			{"id": "p", "type": "prompt", "config": {"prompt": "Say {{upstream.in}}"}, "timeoutSeconds": 5},
			{"id": "out", "type": "output"}
		],
		"edges": [{"from": "in", "to": "p"}, {"from": "p", "to": "out"}]
	}`)

	wf, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "wf1", wf.ID)
	assert.Equal(t, "hello", wf.Name)
	require.Len(t, wf.Nodes, 3)
	assert.Equal(t, model.NodePrompt, wf.Nodes[1].Type)
	assert.Equal(t, "Say {{upstream.in}}", wf.Nodes[1].Config["prompt"])
	assert.Equal(t, float64(5), wf.Nodes[1].TimeoutSeconds)
	assert.Len(t, wf.Edges, 2)
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"not an object":   `[1,2]`,
		"missing nodes":   `{"edges": []}`,
		"missing edges":   `{"nodes": [{"id":"a","type":"input"}]}`,
		"nodes not array": `{"nodes": {"a": 1}, "edges": []}`,
		"edges not array": `{"nodes": [{"id":"a","type":"input"}], "edges": "a->b"}`,
		"node without id": `{"nodes": [{"type":"input"}], "edges": []}`,
		"invalid json":    `{"nodes": [`,
		"numeric id":      `{"id": 5, "nodes": [{"id":"a","type":"input"}], "edges": []}`,
		"object name":     `{"name": {"x": 1}, "nodes": [{"id":"a","type":"input"}], "edges": []}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.True(t, IsDefinitionError(err))
		})
	}
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [{"id":"a","type":"input"},{"id":"b","type":"sql_query"}], "edges": [{"from":"a","to":"b"}]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)

	var de *DefinitionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"b"}, de.Nodes)
	assert.Equal(t, "unknown_type", de.KindName())
}

func TestValidate_DuplicateNode(t *testing.T) {
	wf := &model.Workflow{Nodes: []model.Node{{ID: "a", Type: model.NodeInput}, {ID: "a", Type: model.NodeOutput}}}
	err := Validate(wf)
	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestValidate_DanglingEdge(t *testing.T) {
	wf := &model.Workflow{
		Nodes: []model.Node{{ID: "a", Type: model.NodeInput}},
		Edges: []model.Edge{{From: "a", To: "ghost"}},
	}
	err := Validate(wf)
	require.ErrorIs(t, err, ErrDanglingEdge)
	var de *DefinitionError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"ghost"}, de.Nodes)
}

func TestValidate_ConditionOnPlainEdge(t *testing.T) {
	wf := &model.Workflow{
		Nodes: []model.Node{{ID: "a", Type: model.NodeInput}, {ID: "b", Type: model.NodeOutput}},
		Edges: []model.Edge{{From: "a", To: "b", Condition: "true"}},
	}
	assert.ErrorIs(t, Validate(wf), ErrInvalidEdge)
}

func TestValidate_Cycle(t *testing.T) {
	t.Run("two node cycle", func(t *testing.T) {
		_, err := Parse([]byte(`{"nodes": [{"id":"A","type":"transform"},{"id":"B","type":"transform"}],
			"edges": [{"from":"A","to":"B"},{"from":"B","to":"A"}]}`))
		require.ErrorIs(t, err, ErrCycle)
		var de *DefinitionError
		require.True(t, errors.As(err, &de))
		assert.ElementsMatch(t, []string{"A", "B"}, de.Nodes)
	})

	t.Run("cycle behind a valid entry", func(t *testing.T) {
		wf := &model.Workflow{
			Nodes: []model.Node{{ID: "in", Type: model.NodeInput}, {ID: "x", Type: model.NodeTransform}, {ID: "y", Type: model.NodeTransform}},
			Edges: []model.Edge{{From: "in", To: "x"}, {From: "x", To: "y"}, {From: "y", To: "x"}},
		}
		assert.ErrorIs(t, Validate(wf), ErrCycle)
	})

	t.Run("self loop", func(t *testing.T) {
		wf := &model.Workflow{
			Nodes: []model.Node{{ID: "in", Type: model.NodeInput}, {ID: "x", Type: model.NodeTransform}},
			Edges: []model.Edge{{From: "in", To: "x"}, {From: "x", To: "x"}},
		}
		assert.ErrorIs(t, Validate(wf), ErrCycle)
	})
}

func TestValidate_EntryPoint(t *testing.T) {
	t.Run("two roots are ambiguous", func(t *testing.T) {
		wf := &model.Workflow{
			Nodes: []model.Node{{ID: "a", Type: model.NodeInput}, {ID: "b", Type: model.NodeInput}, {ID: "out", Type: model.NodeOutput}},
			Edges: []model.Edge{{From: "a", To: "out"}, {From: "b", To: "out"}},
		}
		err := Validate(wf)
		require.ErrorIs(t, err, ErrEntryPoint)
		var de *DefinitionError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, []string{"a", "b"}, de.Nodes)
	})

	t.Run("empty graph has no entry", func(t *testing.T) {
		_, err := Parse([]byte(`{"nodes": [], "edges": []}`))
		assert.ErrorIs(t, err, ErrEntryPoint)
	})

	t.Run("single node is its own entry", func(t *testing.T) {
		wf := &model.Workflow{Nodes: []model.Node{{ID: "only", Type: model.NodeInput}}}
		require.NoError(t, Validate(wf))
		n, err := Entry(wf)
		require.NoError(t, err)
		assert.Equal(t, "only", n.ID)
	})
}

func TestOrder_DeclarationTieBreak(t *testing.T) {
	// in fans out to c, b, a (declared in that order); d joins b and a.
	wf := &model.Workflow{
		Nodes: []model.Node{
			{ID: "in", Type: model.NodeInput},
			{ID: "c", Type: model.NodeTransform},
			{ID: "d", Type: model.NodeOutput},
			{ID: "b", Type: model.NodeTransform},
			{ID: "a", Type: model.NodeTransform},
		},
		Edges: []model.Edge{
			{From: "in", To: "a"}, {From: "in", To: "b"}, {From: "in", To: "c"},
			{From: "b", To: "d"}, {From: "a", To: "d"},
		},
	}
	order, err := Order(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"in", "c", "b", "a", "d"}, ids(order))

	again, err := Order(wf)
	require.NoError(t, err)
	assert.Equal(t, ids(order), ids(again))
}

func TestDefinitionError_Message(t *testing.T) {
	err := defErr(ErrEntryPoint, "2 candidate entry nodes", "a", "b")
	assert.Equal(t, "entry point must be exactly one node without incoming edges: 2 candidate entry nodes (nodes: a, b)", err.Error())
}
