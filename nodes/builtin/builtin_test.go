package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

func TestRegistry_CoversEveryType(t *testing.T) {
	r := Registry(plugin.Deps{})
	assert.Empty(t, r.Missing())
	for _, nt := range model.NodeTypes() {
		_, ok := r.Lookup(nt)
		assert.True(t, ok, nt)
	}
}

func TestRegistry_InputAndOutput(t *testing.T) {
	r := Registry(plugin.Deps{})
	in, _ := r.Lookup(model.NodeInput)
	res, err := in.Handle(context.Background(), model.Node{ID: "in"}, plugin.Inputs{Run: "seed"})
	require.NoError(t, err)
	assert.Equal(t, "seed", res.Output)

	out, _ := r.Lookup(model.NodeOutput)
	res, err = out.Handle(context.Background(), model.Node{ID: "out"}, plugin.Inputs{Run: "seed", Upstream: []plugin.Upstream{{NodeID: "a", Output: 1}, {NodeID: "b", Output: 2}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Output)

	res, err = out.Handle(context.Background(), model.Node{ID: "out", Config: map[string]any{"merge": true}}, plugin.Inputs{Upstream: []plugin.Upstream{{NodeID: "a", Output: 1}, {NodeID: "b", Output: 2}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, res.Output)
}
