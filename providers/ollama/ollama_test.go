package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/plugin"
)

func TestComplete(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"hello there","prompt_eval_count":12,"eval_count":3,"done":true}`))
	}))
	defer srv.Close()

	out, err := New(Config{Endpoint: srv.URL, Model: "mistral"}).Complete(context.Background(), plugin.CompletionRequest{Prompt: "hi", MaxTokens: 8})
	require.NoError(t, err)
	assert.Equal(t, "hello there", out.Text)
	assert.Equal(t, 15, out.TokensUsed)
	assert.True(t, out.Cost.IsZero())
	assert.Equal(t, "mistral", got.Model)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 8, got.Options["num_predict"])
}

func TestComplete_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(Config{Endpoint: srv.URL}).Complete(context.Background(), plugin.CompletionRequest{Prompt: "hi"})
	var pe *plugin.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.Status)
}
