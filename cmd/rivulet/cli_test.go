package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/cmd/api/server"
	"github.com/Tsinling0525/flowrun/config"
	"github.com/Tsinling0525/flowrun/ctxlog"
	"github.com/Tsinling0525/flowrun/graph"
	"github.com/Tsinling0525/flowrun/model"
)

const shout = `{
  "id": "shout",
  "nodes": [
    {"id": "in", "type": "input"},
    {"id": "up", "type": "transform", "config": {"operation": "upper"}},
    {"id": "out", "type": "output"}
  ],
  "edges": [{"from": "in", "to": "up"}, {"from": "up", "to": "out"}]
}`

const n8nExport = `{
  "name": "imported",
  "nodes": [
    {"name": "Start", "type": "n8n-nodes-base.manualTrigger"},
    {"name": "Done", "type": "n8n-nodes-base.noOp"}
  ],
  "connections": {"Start": {"main": [[{"node": "Done", "type": "main", "index": 0}]]}}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RIV_CONFIG", "")
	t.Setenv("RIV_STORE", "memory")
	t.Setenv("RIV_LLM_PROVIDER", "echo")
	t.Setenv("RIV_LOG_LEVEL", "error")
}

func TestLoadDefinition(t *testing.T) {
	wf, input, err := loadDefinition([]byte(shout))
	require.NoError(t, err)
	assert.Equal(t, "shout", wf.ID)
	assert.Empty(t, input)

	wf, _, err = loadDefinition([]byte(n8nExport))
	require.NoError(t, err)
	assert.Equal(t, []model.Edge{{From: "Start", To: "Done"}}, wf.Edges)

	_, input, err = loadDefinition([]byte(`{"workflow":` + n8nExport + `,"data":{"input":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", input)

	_, _, err = loadDefinition([]byte(`not json`))
	assert.ErrorIs(t, err, graph.ErrMalformed)
}

func TestRunCmd(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "shout.json", shout)

	var out bytes.Buffer
	require.NoError(t, runCmd([]string{"--file", path, "--input", "hello"}, &out))

	var res model.ExecutionResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, model.ExecutionCompleted, res.Status)
	assert.Equal(t, "HELLO", res.Output)
	assert.Equal(t, []string{"in", "up", "out"}, res.NodeResults.IDs())
}

func TestRunCmd_FailedRunExitsNonZero(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "parse.json", `{"nodes":[{"id":"in","type":"input"},{"id":"p","type":"transform","config":{"operation":"json_parse"}}],"edges":[{"from":"in","to":"p"}]}`)

	var out bytes.Buffer
	err := runCmd([]string{"--file", path, "--input", "{nope"}, &out)
	assert.Equal(t, exitCode(1), err)
	assert.Contains(t, out.String(), `"status": "Failed"`)
}

func TestValidateCmd(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateCmd([]string{"--file", writeFile(t, "ok.json", shout)}, &out))
	assert.Contains(t, out.String(), "valid: 3 nodes, 2 edges")

	err := validateCmd([]string{"--file", writeFile(t, "bad.json", `{"nodes":[],"edges":[]}`)}, &out)
	assert.ErrorIs(t, err, graph.ErrEntryPoint)
}

func TestImportCmd(t *testing.T) {
	src := writeFile(t, "export.json", n8nExport)
	dst := filepath.Join(t.TempDir(), "def.json")
	require.NoError(t, importCmd([]string{"--file", src, "--out", dst}, io.Discard))

	raw, err := os.ReadFile(dst)
	require.NoError(t, err)
	wf, err := graph.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "imported", wf.Name)
	assert.Len(t, wf.Nodes, 2)
}

func TestClientCommands(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := server.NewApp(context.Background(), config.Default(), ctxlog.New("error", "text", io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	srv := httptest.NewServer(server.NewRouter(app))
	t.Cleanup(srv.Close)

	api := []string{"--api", srv.URL, "--user", "dana"}

	var out bytes.Buffer
	require.NoError(t, pushCmd(append([]string{"--file", writeFile(t, "shout.json", shout)}, api...), &out))
	assert.Equal(t, "stored workflow shout\n", out.String())

	out.Reset()
	require.NoError(t, execCmd(append([]string{"--workflow", "shout", "--input", "quiet"}, api...), &out))
	var exec map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &exec))
	assert.Equal(t, "QUIET", exec["output"])

	out.Reset()
	require.NoError(t, getCmd(append([]string{"--execution", exec["executionId"].(string)}, api...), &out))
	assert.Contains(t, out.String(), `"QUIET"`)

	err = getCmd([]string{"--execution", "missing", "--api", srv.URL, "--user", "dana"}, io.Discard)
	assert.ErrorContains(t, err, "404")
}
