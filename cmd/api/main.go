package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/Tsinling0525/flowrun/cmd/api/server"
	"github.com/Tsinling0525/flowrun/config"
	"github.com/Tsinling0525/flowrun/ctxlog"
)

func main() {
	configPath := flag.String("config", os.Getenv("RIV_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := serve(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "flowrun api: %v\n", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.NewApp(ctxlog.WithLogger(ctx, logger), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return server.Serve(ctx, app)
}
