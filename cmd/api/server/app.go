package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/Tsinling0525/flowrun/config"
	"github.com/Tsinling0525/flowrun/engine"
	"github.com/Tsinling0525/flowrun/infra"
	"github.com/Tsinling0525/flowrun/infra/badgerstore"
	"github.com/Tsinling0525/flowrun/infra/postgres"
	"github.com/Tsinling0525/flowrun/nodes/builtin"
	"github.com/Tsinling0525/flowrun/plugin"
	"github.com/Tsinling0525/flowrun/providers/echo"
	"github.com/Tsinling0525/flowrun/providers/httpfetch"
	"github.com/Tsinling0525/flowrun/providers/ollama"
	"github.com/Tsinling0525/flowrun/providers/openai"
)

// App holds everything a surface needs to run workflows.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Runner   *infra.Runner
	Metrics  *infra.Metrics
	Registry *prometheus.Registry
	store    infra.Store
}

// NewApp wires store, providers, engine and runner from cfg.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	llm, err := NewCompleter(cfg.LLM)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	fetch := httpfetch.New(httpfetch.Config{
		Timeout:       cfg.HTTP.Timeout,
		Retry:         httpfetch.RetryPolicy{MaxRetries: cfg.HTTP.MaxRetries, Jitter: true},
		RatePerSecond: cfg.HTTP.RatePerSecond,
		Burst:         cfg.HTTP.Burst,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := infra.NewMetrics(reg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	eng, err := engine.New(
		builtin.Registry(plugin.Deps{LLM: llm, HTTP: fetch}),
		engine.WithBus(infra.MultiBus{infra.LogBus{Level: slog.LevelDebug}, infra.MetricsBus{M: metrics}}),
		engine.WithNodeTimeout(cfg.Execution.NodeTimeout),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	runner := infra.NewRunner(eng, store,
		infra.WithGuard(infra.NewUserLimiter(cfg.Limits.RunsPerMinute, cfg.Limits.Burst)),
		infra.WithLimits(infra.Limits{
			MaxInputChars:      cfg.Limits.MaxInputChars,
			MaxDefinitionBytes: cfg.Limits.MaxDefinitionBytes,
		}),
	)

	logger.Info("app ready", "store", cfg.Store.Driver, "llm", cfg.LLM.Provider)
	return &App{Config: cfg, Logger: logger, Runner: runner, Metrics: metrics, Registry: reg, store: store}, nil
}

func (a *App) Close() error { return a.store.Close() }

func OpenStore(ctx context.Context, cfg config.StoreConfig) (infra.Store, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return infra.NewMemStore(), nil
	case config.StorePostgres:
		s, err := postgres.Open(ctx, postgres.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	case config.StoreBadger:
		s, err := badgerstore.Open(infra.BadgerDir(cfg.DataDir))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func NewCompleter(cfg config.LLMConfig) (plugin.Completer, error) {
	switch cfg.Provider {
	case config.ProviderEcho, "":
		return echo.Echo{}, nil
	case config.ProviderOllama:
		return ollama.New(ollama.Config{Endpoint: cfg.Endpoint, Model: cfg.Model, Timeout: cfg.Timeout}), nil
	case config.ProviderOpenAI:
		pricing := make(map[string]openai.Price, len(cfg.Pricing))
		for model, p := range cfg.Pricing {
			in, err1 := decimal.NewFromString(p.Prompt)
			out, err2 := decimal.NewFromString(p.Completion)
			if err := errors.Join(err1, err2); err != nil {
				return nil, fmt.Errorf("pricing for %s: %w", model, err)
			}
			pricing[model] = openai.Price{Prompt: in, Completion: out}
		}
		return openai.New(openai.Config{APIKey: cfg.APIKey, Endpoint: cfg.Endpoint, Model: cfg.Model, Pricing: pricing, Timeout: cfg.Timeout})
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
