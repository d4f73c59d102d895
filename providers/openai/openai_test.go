package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/plugin"
)

func TestComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"POSITIVE"}}],
			"usage":{"prompt_tokens":1000,"completion_tokens":500,"total_tokens":1500}}`))
	}))
	defer srv.Close()

	c, err := New(Config{
		APIKey:   "sk-test",
		Endpoint: srv.URL,
		Pricing: map[string]Price{
			DefaultModel: {Prompt: decimal.RequireFromString("0.001"), Completion: decimal.RequireFromString("0.002")},
		},
	})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), plugin.CompletionRequest{Prompt: "hi", System: "sys", Temperature: 0.2, MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "POSITIVE", out.Text)
	assert.Equal(t, 1500, out.TokensUsed)
	assert.Equal(t, "0.002", out.Cost.String())

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, []message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}}, got.Messages)
	assert.Equal(t, 10, got.MaxTokens)
}

func TestComplete_UnpricedModelCostsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"x"}}],"usage":{"prompt_tokens":3,"completion_tokens":4}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), plugin.CompletionRequest{Prompt: "hi", Model: "other"})
	require.NoError(t, err)
	assert.Equal(t, 7, out.TokensUsed)
	assert.True(t, out.Cost.IsZero())
}

func TestComplete_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), plugin.CompletionRequest{Prompt: "hi"})
	var pe *plugin.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
