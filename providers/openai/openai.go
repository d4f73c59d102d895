package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/plugin"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-4o-mini"
)

// Price is the cost per 1K tokens.
type Price struct {
	Prompt     decimal.Decimal
	Completion decimal.Decimal
}

type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Pricing  map[string]Price
	Timeout  time.Duration
}

// Client is a plugin.Completer over the chat completions API.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is not set")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Complete(ctx context.Context, req plugin.CompletionRequest) (plugin.Completion, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	msgs := make([]message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, message{Role: "user", Content: req.Prompt})

	data, err := json.Marshal(chatRequest{Model: model, Messages: msgs, Temperature: req.Temperature, MaxTokens: req.MaxTokens})
	if err != nil {
		return plugin.Completion{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "openai", Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(hreq)
	if err != nil {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "openai", Status: resp.StatusCode, Err: err}
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return plugin.Completion{}, &plugin.ProviderError{Provider: "openai", Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if decodeErr != nil {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "openai", Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if len(parsed.Choices) == 0 {
		return plugin.Completion{}, &plugin.ProviderError{Provider: "openai", Status: resp.StatusCode, Err: errors.New("no choices in response")}
	}

	tokens := parsed.Usage.TotalTokens
	if tokens == 0 {
		tokens = parsed.Usage.PromptTokens + parsed.Usage.CompletionTokens
	}
	return plugin.Completion{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: tokens,
		Cost:       c.cost(model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
	}, nil
}

var thousand = decimal.NewFromInt(1000)

// cost is zero for models without a configured price.
func (c *Client) cost(model string, promptTokens, completionTokens int) decimal.Decimal {
	p, ok := c.cfg.Pricing[model]
	if !ok {
		return decimal.Zero
	}
	in := p.Prompt.Mul(decimal.NewFromInt(int64(promptTokens)))
	out := p.Completion.Mul(decimal.NewFromInt(int64(completionTokens)))
	return in.Add(out).Div(thousand)
}
