package ollama

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/plugin"
)

const DefaultEndpoint = "http://localhost:11434/api/generate"

type Config struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client is a plugin.Completer over a local Ollama server. Local inference is free.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) Complete(ctx context.Context, req plugin.CompletionRequest) (plugin.Completion, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	data, err := json.Marshal(generateRequest{Model: model, Prompt: req.Prompt, System: req.System, Options: opts})
	if err != nil {
		return plugin.Completion{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "ollama", Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(hreq)
	if err != nil {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "ollama", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "ollama", Status: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}
	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "ollama", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return plugin.Completion{
		Text:       parsed.Response,
		TokensUsed: parsed.PromptEvalCount + parsed.EvalCount,
		Cost:       decimal.Zero,
	}, nil
}
