package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/Tsinling0525/flowrun/cmd/api/server"
	"github.com/Tsinling0525/flowrun/config"
	"github.com/Tsinling0525/flowrun/ctxlog"
	"github.com/Tsinling0525/flowrun/format/n8n"
	"github.com/Tsinling0525/flowrun/graph"
	"github.com/Tsinling0525/flowrun/model"
)

// loadDefinition reads a native definition or an n8n export. For an n8n request the
// second return value is its data.input.
func loadDefinition(raw []byte) (*model.Workflow, string, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		// Let graph.Parse report it as a malformed definition.
		wf, perr := graph.Parse(raw)
		return wf, "", perr
	}
	_, isRequest := probe["workflow"]
	_, hasConnections := probe["connections"]
	if isRequest || hasConnections {
		req, err := n8n.ParseRequest(raw)
		if err != nil {
			return nil, "", err
		}
		return n8n.ToDefinition(req)
	}
	wf, err := graph.Parse(raw)
	return wf, "", err
}

func readDefinitionFile(path string) (*model.Workflow, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return loadDefinition(raw)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("RIV_CONFIG"), "path to a YAML config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(ctxlog.WithLogger(ctx, logger), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return server.Serve(ctx, app)
}

func runCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	file := fs.String("file", "", "path to a workflow definition or n8n export")
	input := fs.String("input", "", "run input (overrides data.input of an n8n request)")
	provider := fs.String("provider", "", "completion provider: echo, ollama or openai")
	user := fs.String("user", "cli", "user the execution is recorded for")
	configPath := fs.String("config", os.Getenv("RIV_CONFIG"), "path to a YAML config file")
	_ = fs.Parse(args)
	if *file == "" {
		return errors.New("--file is required")
	}

	wf, reqInput, err := readDefinitionFile(*file)
	if err != nil {
		return err
	}
	if *input == "" {
		*input = reqInput
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Runner.RunDefinition(ctx, *user, wf, *input)
	if err != nil {
		return err
	}
	if err := writeJSON(stdout, res); err != nil {
		return err
	}
	if res.Status == model.ExecutionFailed {
		return exitCode(1)
	}
	return nil
}

func validateCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", "", "path to a workflow definition or n8n export")
	_ = fs.Parse(args)
	if *file == "" {
		return errors.New("--file is required")
	}
	wf, _, err := readDefinitionFile(*file)
	if err != nil {
		return err
	}
	order, err := graph.Order(wf)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "valid: %d nodes, %d edges\n", len(wf.Nodes), len(wf.Edges))
	for i, n := range order {
		fmt.Fprintf(stdout, "%3d  %-24s %s\n", i+1, n.ID, n.Type)
	}
	return nil
}

func importCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import-n8n", flag.ExitOnError)
	file := fs.String("file", "", "path to an n8n export or request")
	out := fs.String("out", "", "write the definition here instead of stdout")
	_ = fs.Parse(args)
	if *file == "" {
		return errors.New("--file is required")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	req, err := n8n.ParseRequest(raw)
	if err != nil {
		return err
	}
	wf, err := n8n.ParseWorkflow(req.Workflow)
	if err != nil {
		return err
	}
	b, err := n8n.Encode(wf)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = stdout.Write(b)
		return err
	}
	return os.WriteFile(*out, b, 0o644)
}
