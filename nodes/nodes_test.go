package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/plugin"
)

func TestRender(t *testing.T) {
	in := plugin.Inputs{
		Run: "hello",
		Upstream: []plugin.Upstream{
			{NodeID: "fetch", Output: map[string]any{"user": map[string]any{"name": "ada"}}},
			{NodeID: "step.2", Output: "raw"},
			{NodeID: "json", Output: `{"items":[{"id":7}]}`},
		},
	}
	cases := map[string]string{
		"say {{input}}":                   "say hello",
		"{{ input }}!":                    "hello!",
		"{{upstream.fetch.user.name}}":    "ada",
		"{{upstream.step.2}}":             "raw",
		"{{upstream.json.items.0.id}}":    "7",
		"[{{upstream.missing}}]":          "[]",
		"[{{upstream.fetch.nope}}]":       "[]",
		"{{upstream.fetch.user}}":         `{"name":"ada"}`,
		"no placeholders":                 "no placeholders",
		"{{input}} and {{upstream.step.2}}": "hello and raw",
	}
	for tpl, want := range cases {
		got, err := Render(tpl, in)
		require.NoError(t, err, tpl)
		assert.Equal(t, want, got, tpl)
	}
}

func TestRender_Unterminated(t *testing.T) {
	_, err := Render("ok {{input}} then {{input", plugin.Inputs{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 18")
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "x", Stringify("x"))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, "1.5", Stringify(1.5))
	assert.Equal(t, "3", Stringify(3))
	assert.Equal(t, `[1,"a"]`, Stringify([]any{1, "a"}))
}

func TestConfigAccessors(t *testing.T) {
	cfg := map[string]any{
		"s": "v", "n": 3.0, "ns": "2.5", "b": true, "bs": "false",
		"h": map[string]any{"X-A": "1", "X-B": 2},
	}
	assert.Equal(t, "v", String(cfg, "s", "d"))
	assert.Equal(t, "d", String(cfg, "missing", "d"))
	assert.Equal(t, "3", String(cfg, "n", ""))
	assert.Equal(t, 2.5, Float(cfg, "ns", 0))
	assert.Equal(t, 3, Int(cfg, "n", 0))
	assert.Equal(t, 9, Int(cfg, "missing", 9))
	assert.True(t, Bool(cfg, "b", false))
	assert.False(t, Bool(cfg, "bs", true))
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "2"}, StringMap(cfg, "h"))
	assert.Nil(t, StringMap(cfg, "s"))
}

func TestLookup(t *testing.T) {
	v := map[string]any{"a": []any{map[string]any{"b": "c"}}}
	got, ok := Lookup(v, "a.0.b")
	require.True(t, ok)
	assert.Equal(t, "c", got)

	_, ok = Lookup(v, "a.5")
	assert.False(t, ok)
	_, ok = Lookup("plain", "x")
	assert.False(t, ok)

	got, ok = Lookup(v, "")
	require.True(t, ok)
	assert.Equal(t, v, got)
}
