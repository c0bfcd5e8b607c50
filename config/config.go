// Package config loads agentlite settings from YAML files.
//
// A configuration file may reference environment variables as ${VAR} or
// ${VAR:-default}; variables from .env files are loaded with godotenv before
// expansion and never override the process environment.
//
//	loop:
//	  max_iterations: 12
//	  retry_backoff: 500ms
//	delegation:
//	  max_depth: 2
//	  timeout: 30s
//	model:
//	  provider: openai
//	  name: gpt-4o-mini
//	  api_key: ${OPENAI_API_KEY}
//	logging:
//	  level: debug
//	  backend: zap
//
// Absent keys keep their defaults, so an empty file yields Default().
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentlite/agent"
	"github.com/hupe1980/agentlite/engine"
	"github.com/hupe1980/agentlite/logging"
	"github.com/hupe1980/agentlite/model"
	"github.com/hupe1980/agentlite/model/anthropic"
	"github.com/hupe1980/agentlite/model/openai"
)

// Config is the root of an agentlite configuration file.
type Config struct {
	Loop       LoopConfig       `yaml:"loop"`
	Delegation DelegationConfig `yaml:"delegation"`
	Engine     EngineConfig     `yaml:"engine"`
	Logging    LoggingConfig    `yaml:"logging"`
	Model      ModelConfig      `yaml:"model"`
}

// LoopConfig bounds every reasoning loop.
type LoopConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	MaxModelRetries  int           `yaml:"max_model_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	MaxRetryBackoff  time.Duration `yaml:"max_retry_backoff"`
	MaxParseFailures int           `yaml:"max_parse_failures"`
	ContextWindow    int           `yaml:"context_window"`
}

// DelegationConfig bounds manager delegations.
type DelegationConfig struct {
	MaxDepth    int           `yaml:"max_depth"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxParallel int           `yaml:"max_parallel"`
}

// EngineConfig configures task submission.
type EngineConfig struct {
	MaxConcurrentInvocations int `yaml:"max_concurrent_invocations"`
}

// LoggingConfig selects the logging backend.
//
// Level is one of debug, info, warn or error; Format is json or text;
// Backend is slog or zap.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Backend string `yaml:"backend"`
}

// ModelConfig selects the model provider, openai or anthropic.
// RequestsPerSecond throttles completions; 0 disables throttling.
type ModelConfig struct {
	Provider          string  `yaml:"provider"`
	Name              string  `yaml:"name"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int64   `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the built-in defaults.
func Default() Config {
	loop := agent.DefaultConfig()
	deleg := agent.DefaultDelegationConfig()

	return Config{
		Loop: LoopConfig{
			MaxIterations:    loop.MaxIterations,
			MaxModelRetries:  loop.MaxModelRetries,
			RetryBackoff:     loop.RetryBackoff,
			MaxRetryBackoff:  loop.MaxRetryBackoff,
			MaxParseFailures: loop.MaxParseFailures,
			ContextWindow:    loop.ContextWindow,
		},
		Delegation: DelegationConfig{
			MaxDepth:    deleg.MaxDepth,
			Timeout:     deleg.Timeout,
			MaxParallel: deleg.MaxParallel,
		},
		Engine: EngineConfig{
			MaxConcurrentInvocations: engine.DefaultConfig.MaxConcurrentInvocations,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Backend: "slog",
		},
		Model: ModelConfig{
			Provider: "openai",
			Burst:    1,
		},
	}
}

// Parse decodes YAML over Default, expands environment variables and
// validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	expanded := ExpandEnv(string(data))
	if strings.TrimSpace(expanded) != "" {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load loads envFiles (missing files are skipped) and parses the YAML file
// at path.
func Load(path string, envFiles ...string) (Config, error) {
	if err := LoadDotEnv(envFiles...); err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if err := c.AgentConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("loop: %w", err))
	}
	if err := c.ManagerConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("delegation: %w", err))
	}
	if c.Engine.MaxConcurrentInvocations < 0 {
		errs = append(errs, fmt.Errorf("engine: max concurrent invocations must not be negative: %d", c.Engine.MaxConcurrentInvocations))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}
	switch c.Logging.Backend {
	case "", "slog", "zap":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown backend %q", c.Logging.Backend))
	}
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("model: unknown provider %q", c.Model.Provider))
	}
	if c.Model.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("model: requests per second must not be negative"))
	}

	return errors.Join(errs...)
}

// AgentConfig returns the loop bounds for agent.New.
func (c Config) AgentConfig() agent.Config {
	return agent.Config{
		MaxIterations:    c.Loop.MaxIterations,
		MaxModelRetries:  c.Loop.MaxModelRetries,
		RetryBackoff:     c.Loop.RetryBackoff,
		MaxRetryBackoff:  c.Loop.MaxRetryBackoff,
		MaxParseFailures: c.Loop.MaxParseFailures,
		ContextWindow:    c.Loop.ContextWindow,
	}
}

// ManagerConfig returns the delegation bounds for agent.NewManager.
func (c Config) ManagerConfig() agent.DelegationConfig {
	return agent.DelegationConfig{
		MaxDepth:    c.Delegation.MaxDepth,
		Timeout:     c.Delegation.Timeout,
		MaxParallel: c.Delegation.MaxParallel,
	}
}

// EngineConfig returns the engine configuration.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{MaxConcurrentInvocations: c.Engine.MaxConcurrentInvocations}
}

// Logger builds the configured logger.
func (c Config) Logger() (logging.Logger, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}

	if c.Logging.Backend != "zap" {
		return logging.NewSlogLogger(level, c.Logging.Format, false), nil
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapLevel(level))
	if c.Logging.Format == "text" {
		zc.Encoding = "console"
	}
	z, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logging.NewZapAdapter(z), nil
}

func zapLevel(l logging.LogLevel) zapcore.Level {
	switch l {
	case logging.LogLevelDebug:
		return zapcore.DebugLevel
	case logging.LogLevelWarn:
		return zapcore.WarnLevel
	case logging.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ModelClient builds the configured provider client, throttled when
// RequestsPerSecond is set.
func (c Config) ModelClient() (model.Client, error) {
	m := c.Model

	var client model.Client
	switch m.Provider {
	case "openai":
		client = openai.NewClient(func(o *openai.Options) {
			if m.Name != "" {
				o.Model = m.Name
			}
			if m.MaxTokens > 0 {
				o.MaxCompletionTokens = m.MaxTokens
			}
			o.Temperature = m.Temperature
			o.APIKey = m.APIKey
			o.BaseURL = m.BaseURL
		})
	case "anthropic":
		client = anthropic.NewClient(func(o *anthropic.Options) {
			if m.Name != "" {
				o.Model = anthropicsdk.Model(m.Name)
			}
			if m.MaxTokens > 0 {
				o.MaxTokens = m.MaxTokens
			}
			o.Temperature = m.Temperature
			o.APIKey = m.APIKey
			o.BaseURL = m.BaseURL
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q", m.Provider)
	}

	if m.RequestsPerSecond > 0 {
		burst := m.Burst
		if burst < 1 {
			burst = 1
		}
		client = model.RateLimited(client, rate.Limit(m.RequestsPerSecond), burst)
	}

	return client, nil
}
