package httpnode

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Tsinling0525/flowrun/model"
	"github.com/Tsinling0525/flowrun/nodes"
	"github.com/Tsinling0525/flowrun/plugin"
)

// HttpRequest calls an external HTTP endpoint and returns the response body.
// Config:
// - method: string (default: GET)
// - url: string (required, template)
// - body: string (template)
// - headers: map[string]string (values are templates)
// - parse_json: bool (decode the body into a structured value)
// - fail_on_status: bool (treat status >= 400 as a failure)
// - retry: bool (allow retries for POST and PATCH, which are sent once otherwise)
type HttpRequest struct {
	fetch plugin.Fetcher
}

func NewHttpRequest(f plugin.Fetcher) *HttpRequest { return &HttpRequest{fetch: f} }

func (n *HttpRequest) Handle(ctx context.Context, node model.Node, in plugin.Inputs) (plugin.Result, error) {
	if n.fetch == nil {
		return plugin.Result{}, fmt.Errorf("no http fetcher configured")
	}
	method := strings.ToUpper(nodes.String(node.Config, "method", http.MethodGet))
	urlTpl := nodes.String(node.Config, "url", "")
	if urlTpl == "" {
		return plugin.Result{}, fmt.Errorf("config.url is required")
	}
	url, err := nodes.Render(urlTpl, in)
	if err != nil {
		return plugin.Result{}, fmt.Errorf("url: %w", err)
	}
	body, err := nodes.Render(nodes.String(node.Config, "body", ""), in)
	if err != nil {
		return plugin.Result{}, fmt.Errorf("body: %w", err)
	}
	var hdrs map[string]string
	if h := nodes.StringMap(node.Config, "headers"); h != nil {
		hdrs = make(map[string]string, len(h))
		for k, v := range h {
			if hdrs[k], err = nodes.Render(v, in); err != nil {
				return plugin.Result{}, fmt.Errorf("header %s: %w", k, err)
			}
		}
	}

	resp, err := n.fetch.Fetch(ctx, plugin.FetchRequest{
		Method:  method,
		URL:     url,
		Body:    body,
		Headers: hdrs,
		Retry:   nodes.Bool(node.Config, "retry", false),
	})
	if err != nil {
		return plugin.Result{}, err
	}
	if nodes.Bool(node.Config, "fail_on_status", false) && resp.Status >= 400 {
		return plugin.Result{}, fmt.Errorf("%s %s: unexpected status %d", method, url, resp.Status)
	}

	var out any = resp.Body
	if nodes.Bool(node.Config, "parse_json", false) {
		if out, err = nodes.DecodeJSON(resp.Body); err != nil {
			return plugin.Result{}, fmt.Errorf("decode response: %w", err)
		}
	}
	return plugin.Result{Output: out}, nil
}
