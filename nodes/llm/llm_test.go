package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

type fakeCompleter struct {
	got  plugin.CompletionRequest
	resp plugin.Completion
	err  error
}

func (f *fakeCompleter) Complete(ctx context.Context, req plugin.CompletionRequest) (plugin.Completion, error) {
	f.got = req
	return f.resp, f.err
}

func TestPrompt_RendersAndReportsUsage(t *testing.T) {
	fc := &fakeCompleter{resp: plugin.Completion{Text: "NEGATIVE", TokensUsed: 42, Cost: decimal.RequireFromString("0.0021")}}
	node := model.Node{ID: "p", Type: model.NodePrompt, Config: map[string]any{
		"prompt":      "Classify: {{input}}",
		"system":      "You are terse.",
		"model":       "gpt-4o-mini",
		"temperature": 0.0,
		"max_tokens":  16,
	}}

	res, err := NewPrompt(fc).Handle(context.Background(), node, plugin.Inputs{Run: "I hate mondays"})
	require.NoError(t, err)
	assert.Equal(t, "NEGATIVE", res.Output)
	assert.Equal(t, 42, res.TokensUsed)
	assert.Equal(t, "0.0021", res.Cost.String())

	assert.Equal(t, plugin.CompletionRequest{
		Prompt:      "Classify: I hate mondays",
		System:      "You are terse.",
		Model:       "gpt-4o-mini",
		Temperature: 0,
		MaxTokens:   16,
	}, fc.got)
}

func TestPrompt_Defaults(t *testing.T) {
	fc := &fakeCompleter{resp: plugin.Completion{Text: "ok"}}
	node := model.Node{ID: "p", Type: model.NodePrompt, Config: map[string]any{"prompt": "{{upstream.a}}"}}
	in := plugin.Inputs{Upstream: []plugin.Upstream{{NodeID: "a", Output: "from a"}}}

	_, err := NewPrompt(fc).Handle(context.Background(), node, in)
	require.NoError(t, err)
	assert.Equal(t, "from a", fc.got.Prompt)
	assert.Equal(t, 0.7, fc.got.Temperature)
	assert.Equal(t, 512, fc.got.MaxTokens)
}

func TestPrompt_Errors(t *testing.T) {
	node := model.Node{ID: "p", Type: model.NodePrompt, Config: map[string]any{}}
	_, err := NewPrompt(&fakeCompleter{}).Handle(context.Background(), node, plugin.Inputs{})
	assert.ErrorContains(t, err, "prompt is required")

	node.Config["prompt"] = "{{input"
	_, err = NewPrompt(&fakeCompleter{}).Handle(context.Background(), node, plugin.Inputs{})
	assert.ErrorContains(t, err, "malformed template")

	node.Config["prompt"] = "hi"
	boom := &plugin.ProviderError{Provider: "openai", Status: 503, Err: errors.New("overloaded")}
	_, err = NewPrompt(&fakeCompleter{err: boom}).Handle(context.Background(), node, plugin.Inputs{})
	var pe *plugin.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.Status)

	_, err = NewPrompt(nil).Handle(context.Background(), node, plugin.Inputs{})
	assert.ErrorContains(t, err, "no completion provider")
}
