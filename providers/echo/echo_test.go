package echo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/plugin"
)

func TestEcho(t *testing.T) {
	out, err := Echo{Prefix: "> "}.Complete(context.Background(), plugin.CompletionRequest{Prompt: "three word prompt"})
	require.NoError(t, err)
	assert.Equal(t, "> three word prompt", out.Text)
	assert.Equal(t, 3, out.TokensUsed)
	assert.True(t, out.Cost.IsZero())
}

func TestEcho_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Echo{}.Complete(ctx, plugin.CompletionRequest{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}
