package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

func handle(cfg map[string]any, in plugin.Inputs) (any, error) {
	res, err := Transform{}.Handle(context.Background(), model.Node{ID: "t", Type: model.NodeTransform, Config: cfg}, in)
	return res.Output, err
}

func TestTransform(t *testing.T) {
	in := plugin.Inputs{
		Run: "ignored",
		Upstream: []plugin.Upstream{
			{NodeID: "a", Output: `{"user":{"name":"Ada"}}`},
			{NodeID: "b", Output: "second"},
		},
	}
	tests := []struct {
		name string
		cfg  map[string]any
		want any
	}{
		{"passthrough", map[string]any{"operation": "passthrough"}, `{"user":{"name":"Ada"}}`},
		{"pick", map[string]any{"operation": "pick", "field": "user.name"}, "Ada"},
		{"template", map[string]any{"operation": "template", "template": "hi {{upstream.a.user.name}} / {{upstream.b}}"}, "hi Ada / second"},
		{"concat", map[string]any{"operation": "concat", "separator": "|"}, `{"user":{"name":"Ada"}}|second`},
		{"upper", map[string]any{"operation": "upper"}, `{"USER":{"NAME":"ADA"}}`},
		{"json_parse", map[string]any{"operation": "json_parse"}, map[string]any{"user": map[string]any{"name": "Ada"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := handle(tc.cfg, in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransform_EntryUsesRunInput(t *testing.T) {
	got, err := handle(map[string]any{"operation": "trim"}, plugin.Inputs{Run: "  padded \n"})
	require.NoError(t, err)
	assert.Equal(t, "padded", got)

	got, err = handle(map[string]any{"operation": "lower"}, plugin.Inputs{Run: "LOUD"})
	require.NoError(t, err)
	assert.Equal(t, "loud", got)
}

func TestTransform_Errors(t *testing.T) {
	in := plugin.Inputs{Upstream: []plugin.Upstream{{NodeID: "a", Output: map[string]any{"x": 1}}}}

	_, err := handle(map[string]any{"operation": "pick", "field": "y"}, in)
	assert.ErrorContains(t, err, `field "y" not found`)

	_, err = handle(map[string]any{"operation": "json_parse"}, plugin.Inputs{Run: "{bad"})
	assert.Error(t, err)

	_, err = handle(map[string]any{"operation": "explode"}, in)
	assert.ErrorContains(t, err, "unknown operation")

	_, err = handle(map[string]any{}, in)
	assert.ErrorContains(t, err, "operation is required")
}
