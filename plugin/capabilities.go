package plugin

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type CompletionRequest struct {
	Prompt      string
	System      string
	Model       string
	Temperature float64
	MaxTokens   int
}

type Completion struct {
	Text       string
	TokensUsed int
	Cost       decimal.Decimal
}

// Completer is a large language model completion capability.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type FetchRequest struct {
	Method  string
	URL     string
	Body    string
	Headers map[string]string
	// Retry allows resending a non-idempotent method such as POST after a failure.
	Retry bool
}

type FetchResponse struct {
	Status int
	Body   string
}

// Fetcher issues outbound HTTP requests.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// ProviderError is returned by a Completer on quota, timeout or transport failures.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NetworkError is returned by a Fetcher when no response could be obtained.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
