// Package httpfetch is the outbound HTTP capability used by http_request nodes.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Tsinling0525/flowrun/ctxlog"
	"github.com/Tsinling0525/flowrun/plugin"
)

const DefaultMaxBody = 1 << 20

// ErrBodyTooLarge is returned, without retrying, when a response exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// idempotent methods are retried by default; others only when the request opts in.
var idempotent = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
}

type Config struct {
	Timeout time.Duration
	Retry   RetryPolicy
	// RatePerSecond throttles outbound requests; zero disables throttling.
	RatePerSecond float64
	Burst         int
	MaxBodyBytes  int64
	Client        *http.Client
}

// Fetcher implements plugin.Fetcher.
type Fetcher struct {
	client  *http.Client
	retry   RetryPolicy
	limiter *rate.Limiter
	maxBody int64
}

func New(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	f := &Fetcher{client: client, retry: cfg.Retry.normalized(), maxBody: cfg.MaxBodyBytes}
	if f.maxBody <= 0 {
		f.maxBody = DefaultMaxBody
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, req plugin.FetchRequest) (plugin.FetchResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	log := ctxlog.FromContext(ctx).With("method", method, "url", req.URL)

	retries := f.retry.MaxRetries
	if !idempotent[method] && !req.Retry {
		retries = 0
	}

	var (
		resp    plugin.FetchResponse
		lastErr error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			d := backoff(attempt-1, f.retry.BaseDelay, f.retry.MaxDelay, f.retry.Jitter)
			log.Debug("retrying request", "attempt", attempt, "delay", d)
			select {
			case <-ctx.Done():
				return plugin.FetchResponse{}, &plugin.NetworkError{Method: method, URL: req.URL, Err: ctx.Err()}
			case <-time.After(d):
			}
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return plugin.FetchResponse{}, &plugin.NetworkError{Method: method, URL: req.URL, Err: err}
			}
		}

		resp, lastErr = f.do(ctx, method, req)
		if errors.Is(lastErr, ErrBodyTooLarge) {
			return plugin.FetchResponse{}, lastErr
		}
		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				break
			}
			continue
		}
		if resp.Status < 500 {
			return resp, nil
		}
	}
	if lastErr != nil {
		return plugin.FetchResponse{}, &plugin.NetworkError{Method: method, URL: req.URL, Err: lastErr}
	}
	return resp, nil
}

func (f *Fetcher) do(ctx context.Context, method string, req plugin.FetchRequest) (plugin.FetchResponse, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return plugin.FetchResponse{}, err
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	if req.Body != "" && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/json")
	}

	hresp, err := f.client.Do(hreq)
	if err != nil {
		return plugin.FetchResponse{}, err
	}
	defer hresp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(hresp.Body, f.maxBody+1))
	if err != nil {
		return plugin.FetchResponse{}, err
	}
	if int64(len(data)) > f.maxBody {
		return plugin.FetchResponse{}, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, f.maxBody)
	}
	return plugin.FetchResponse{Status: hresp.StatusCode, Body: string(data)}, nil
}
