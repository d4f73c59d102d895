// Package echo is an offline completion provider for local runs and demos.
package echo

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/plugin"
)

// Echo answers every prompt with the prompt itself, optionally prefixed.
// Tokens are counted as words.
type Echo struct {
	Prefix string
}

func (e Echo) Complete(ctx context.Context, req plugin.CompletionRequest) (plugin.Completion, error) {
	if err := ctx.Err(); err != nil {
		return plugin.Completion{}, err
	}
	text := e.Prefix + req.Prompt
	return plugin.Completion{
		Text:       text,
		TokensUsed: len(strings.Fields(req.System)) + len(strings.Fields(req.Prompt)),
		Cost:       decimal.Zero,
	}, nil
}
