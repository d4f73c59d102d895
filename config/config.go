// Package config loads runtime settings: built-in defaults, then an optional YAML
// file, then RIV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	LLM       LLMConfig       `yaml:"llm"`
	HTTP      HTTPConfig      `yaml:"http"`
	Limits    LimitsConfig    `yaml:"limits"`
	Execution ExecutionConfig `yaml:"execution"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
	DataDir     string `yaml:"data_dir"`
}

const (
	ProviderEcho   = "echo"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Price is the cost per 1K tokens as decimal strings.
type Price struct {
	Prompt     string `yaml:"prompt"`
	Completion string `yaml:"completion"`
}

type LLMConfig struct {
	Provider string           `yaml:"provider"`
	Model    string           `yaml:"model"`
	Endpoint string           `yaml:"endpoint"`
	APIKey   string           `yaml:"api_key"`
	Timeout  time.Duration    `yaml:"timeout"`
	Pricing  map[string]Price `yaml:"pricing"`
}

type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
}

type LimitsConfig struct {
	MaxInputChars      int `yaml:"max_input_chars"`
	MaxDefinitionBytes int `yaml:"max_definition_bytes"`
	RunsPerMinute      int `yaml:"runs_per_minute"`
	Burst              int `yaml:"burst"`
}

type ExecutionConfig struct {
	NodeTimeout time.Duration `yaml:"node_timeout"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:    LogConfig{Level: "info", Format: "text"},
		Store:  StoreConfig{Driver: StoreMemory, DataDir: "data"},
		LLM: LLMConfig{
			Provider: ProviderEcho,
			Timeout:  60 * time.Second,
			Pricing: map[string]Price{
				"gpt-4o-mini": {Prompt: "0.00015", Completion: "0.0006"},
				"gpt-4o":      {Prompt: "0.0025", Completion: "0.01"},
			},
		},
		HTTP:      HTTPConfig{Timeout: 30 * time.Second, MaxRetries: 2, Burst: 1, MaxBodyBytes: 1 << 20},
		Limits:    LimitsConfig{MaxInputChars: 10_000, MaxDefinitionBytes: 100 * 1024, RunsPerMinute: 60, Burst: 10},
		Execution: ExecutionConfig{NodeTimeout: 2 * time.Minute},
	}
}

// Load reads path (optional) over Default, applies environment overrides and
// validates the result. Only keys present in the file replace defaults, so an explicit
// zero such as max_retries: 0 is kept. Pricing entries from the file are added to the
// default price table.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		prices := cfg.LLM.Pricing
		cfg.LLM.Pricing = nil
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.LLM.Pricing == nil {
			cfg.LLM.Pricing = make(map[string]Price, len(prices))
		}
		if err := mergo.Merge(&cfg.LLM.Pricing, prices); err != nil {
			return Config{}, fmt.Errorf("merge pricing: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error
	if port, ok := os.LookupEnv("RIV_API_PORT"); ok && port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.Addr = envString("RIV_ADDR", cfg.Server.Addr)
	cfg.Log.Level = envString("RIV_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("RIV_LOG_FORMAT", cfg.Log.Format)

	cfg.Store.Driver = envString("RIV_STORE", cfg.Store.Driver)
	cfg.Store.DatabaseURL = envString("RIV_DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.DataDir = envString("RIV_DATA_DIR", cfg.Store.DataDir)

	cfg.LLM.Provider = envString("RIV_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = envString("RIV_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Endpoint = envString("RIV_LLM_ENDPOINT", cfg.LLM.Endpoint)
	cfg.LLM.APIKey = envString("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.APIKey = envString("RIV_LLM_API_KEY", cfg.LLM.APIKey)

	if cfg.HTTP.Timeout, err = envDuration("RIV_HTTP_TIMEOUT", cfg.HTTP.Timeout); err != nil {
		return err
	}
	if cfg.HTTP.MaxRetries, err = envInt("RIV_HTTP_MAX_RETRIES", cfg.HTTP.MaxRetries); err != nil {
		return err
	}
	if cfg.HTTP.RatePerSecond, err = envFloat("RIV_HTTP_RATE", cfg.HTTP.RatePerSecond); err != nil {
		return err
	}
	if cfg.Limits.RunsPerMinute, err = envInt("RIV_RUNS_PER_MINUTE", cfg.Limits.RunsPerMinute); err != nil {
		return err
	}
	if cfg.Execution.NodeTimeout, err = envDuration("RIV_NODE_TIMEOUT", cfg.Execution.NodeTimeout); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.LLM.Provider {
	case ProviderEcho, ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("llm.api_key (or OPENAI_API_KEY) is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.Limits.MaxInputChars < 1 {
		errs = append(errs, errors.New("limits.max_input_chars must be >= 1"))
	}
	if c.Limits.MaxDefinitionBytes < 1 {
		errs = append(errs, errors.New("limits.max_definition_bytes must be >= 1"))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, errors.New("http.max_retries must be >= 0"))
	}
	if c.Execution.NodeTimeout < 0 {
		errs = append(errs, errors.New("execution.node_timeout must be >= 0"))
	}
	return errors.Join(errs...)
}
