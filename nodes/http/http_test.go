package httpnode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/plugin"
)

type fakeFetcher struct {
	got  plugin.FetchRequest
	resp plugin.FetchResponse
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, req plugin.FetchRequest) (plugin.FetchResponse, error) {
	f.got = req
	return f.resp, f.err
}

func node(cfg map[string]any) model.Node {
	return model.Node{ID: "h", Type: model.NodeHTTPRequest, Config: cfg}
}

func TestHttpRequest_RendersRequest(t *testing.T) {
	ff := &fakeFetcher{resp: plugin.FetchResponse{Status: 200, Body: "pong"}}
	n := node(map[string]any{
		"method":  "post",
		"url":     "https://api.test/items/{{input}}",
		"body":    `{"q":"{{upstream.prev}}"}`,
		"headers": map[string]any{"Authorization": "Bearer {{upstream.prev}}"},
	})
	in := plugin.Inputs{Run: "42", Upstream: []plugin.Upstream{{NodeID: "prev", Output: "tok"}}}

	res, err := NewHttpRequest(ff).Handle(context.Background(), n, in)
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Output)
	assert.Equal(t, plugin.FetchRequest{
		Method:  "POST",
		URL:     "https://api.test/items/42",
		Body:    `{"q":"tok"}`,
		Headers: map[string]string{"Authorization": "Bearer tok"},
	}, ff.got)
}

func TestHttpRequest_ParseJSON(t *testing.T) {
	ff := &fakeFetcher{resp: plugin.FetchResponse{Status: 200, Body: `{"ok":true}`}}
	res, err := NewHttpRequest(ff).Handle(context.Background(), node(map[string]any{"url": "http://x", "parse_json": true}), plugin.Inputs{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, res.Output)
	assert.Equal(t, "GET", ff.got.Method)
	assert.False(t, ff.got.Retry)
}

func TestHttpRequest_RetryOptIn(t *testing.T) {
	ff := &fakeFetcher{resp: plugin.FetchResponse{Status: 200}}
	_, err := NewHttpRequest(ff).Handle(context.Background(), node(map[string]any{"url": "http://x", "method": "POST", "retry": true}), plugin.Inputs{})
	require.NoError(t, err)
	assert.True(t, ff.got.Retry)
}

func TestHttpRequest_Status(t *testing.T) {
	ff := &fakeFetcher{resp: plugin.FetchResponse{Status: 404, Body: "nope"}}
	res, err := NewHttpRequest(ff).Handle(context.Background(), node(map[string]any{"url": "http://x"}), plugin.Inputs{})
	require.NoError(t, err)
	assert.Equal(t, "nope", res.Output)

	_, err = NewHttpRequest(ff).Handle(context.Background(), node(map[string]any{"url": "http://x", "fail_on_status": true}), plugin.Inputs{})
	assert.ErrorContains(t, err, "unexpected status 404")
}

func TestHttpRequest_Errors(t *testing.T) {
	_, err := NewHttpRequest(&fakeFetcher{}).Handle(context.Background(), node(map[string]any{}), plugin.Inputs{})
	assert.ErrorContains(t, err, "url is required")

	netErr := &plugin.NetworkError{Method: "GET", URL: "http://x", Err: errors.New("connection refused")}
	_, err = NewHttpRequest(&fakeFetcher{err: netErr}).Handle(context.Background(), node(map[string]any{"url": "http://x"}), plugin.Inputs{})
	var ne *plugin.NetworkError
	assert.ErrorAs(t, err, &ne)
}
