package llm

import (
	"context"
	"fmt"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/nodes"
	"github.com/Tsinling0525/flowrun/plugin"
)

// Prompt renders a prompt template against upstream outputs and sends it to the
// completion capability.
// Config:
// - prompt: string (required, template)
// - system: string (optional, template)
// - model: string (optional, provider default otherwise)
// - temperature: number (default 0.7)
// - max_tokens: number (default 512)
type Prompt struct {
	llm plugin.Completer
}

func NewPrompt(c plugin.Completer) *Prompt { return &Prompt{llm: c} }

func (n *Prompt) Handle(ctx context.Context, node model.Node, in plugin.Inputs) (plugin.Result, error) {
	if n.llm == nil {
		return plugin.Result{}, fmt.Errorf("no completion provider configured")
	}
	tpl := nodes.String(node.Config, "prompt", "")
	if tpl == "" {
		return plugin.Result{}, fmt.Errorf("config.prompt is required")
	}
	prompt, err := nodes.Render(tpl, in)
	if err != nil {
		return plugin.Result{}, fmt.Errorf("prompt: %w", err)
	}
	system, err := nodes.Render(nodes.String(node.Config, "system", ""), in)
	if err != nil {
		return plugin.Result{}, fmt.Errorf("system: %w", err)
	}

	out, err := n.llm.Complete(ctx, plugin.CompletionRequest{
		Prompt:      prompt,
		System:      system,
		Model:       nodes.String(node.Config, "model", ""),
		Temperature: nodes.Float(node.Config, "temperature", 0.7),
		MaxTokens:   nodes.Int(node.Config, "max_tokens", 512),
	})
	if err != nil {
		return plugin.Result{}, err
	}
	return plugin.Result{Output: out.Text, TokensUsed: out.TokensUsed, Cost: out.Cost}, nil
}
