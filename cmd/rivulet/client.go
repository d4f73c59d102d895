package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// client talks to a running API server.
type client struct {
	base string
	user string
	http *http.Client
}

func newClient(fs *flag.FlagSet) func() *client {
	base := fs.String("api", defaultAPIBase(), "API base URL")
	user := fs.String("user", envOr("RIV_USER", "cli"), "value sent as X-User-ID")
	return func() *client {
		return &client{base: *base, user: *user, http: &http.Client{Timeout: 2 * time.Minute}}
	}
}

func defaultAPIBase() string {
	if v := os.Getenv("RIV_API_URL"); v != "" {
		return v
	}
	return "http://127.0.0.1:" + envOr("RIV_API_PORT", "8080")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// do sends body (raw JSON, may be nil) and returns the envelope's data on success.
func (c *client) do(method, path string, body []byte) (map[string]any, error) {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.user)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Error   string         `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, out.Error)
	}
	return out.Data, nil
}

func pushCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	file := fs.String("file", "", "path to a workflow definition or n8n export")
	cl := newClient(fs)
	_ = fs.Parse(args)
	if *file == "" {
		return errors.New("--file is required")
	}
	wf, _, err := readDefinitionFile(*file)
	if err != nil {
		return err
	}
	body, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	data, err := cl().do(http.MethodPost, "/workflows", body)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "stored workflow %v\n", data["workflowId"])
	return nil
}

func execCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	id := fs.String("workflow", "", "stored workflow id")
	input := fs.String("input", "", "run input")
	cl := newClient(fs)
	_ = fs.Parse(args)
	if *id == "" {
		return errors.New("--workflow is required")
	}
	body, err := json.Marshal(map[string]string{"input": *input})
	if err != nil {
		return err
	}
	data, err := cl().do(http.MethodPost, "/workflows/"+*id+"/execute", body)
	if err != nil {
		return err
	}
	return printExecution(stdout, data)
}

func getCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	id := fs.String("execution", "", "execution id")
	cl := newClient(fs)
	_ = fs.Parse(args)
	if *id == "" {
		return errors.New("--execution is required")
	}
	data, err := cl().do(http.MethodGet, "/executions/"+*id, nil)
	if err != nil {
		return err
	}
	return printExecution(stdout, data)
}

func printExecution(stdout io.Writer, data map[string]any) error {
	exec, _ := data["execution"].(map[string]any)
	if err := writeJSON(stdout, exec); err != nil {
		return err
	}
	if exec["status"] == "Failed" {
		return exitCode(1)
	}
	return nil
}
