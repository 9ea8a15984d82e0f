// Package config loads the Loopai runtime configuration from YAML.
// Values support ${VAR} environment substitution so the same file can be
// deployed across environments.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Sampling  SamplingConfig  `yaml:"sampling"`
	Validate  ValidateConfig  `yaml:"validate"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
}

// LoggingConfig controls the global slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// CacheConfig controls the artifact cache. TTLs are in minutes, matching
// the deployment files; zero falls back to the defaults below.
type CacheConfig struct {
	Enabled         bool `yaml:"enabled"`
	TaskTTLMinutes  int  `yaml:"task_ttl_minutes"`
	ArtifactTTLMins int  `yaml:"artifact_ttl_minutes"`
	StatsTTLMinutes int  `yaml:"stats_ttl_minutes"`
	SweepSeconds    int  `yaml:"sweep_seconds"`
}

// SynthesisConfig points at the external synthesis collaborator.
type SynthesisConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxAttempts    int    `yaml:"max_attempts"`
	Verbose        bool   `yaml:"verbose"`
}

// RuntimeProfile maps a language tag to the interpreter invocation used by
// the sandbox. Args are passed before the program file path.
type RuntimeProfile struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// SandboxConfig bounds sandboxed executions.
type SandboxConfig struct {
	TimeoutMS     int                       `yaml:"timeout_ms"`
	CPUSeconds    int                       `yaml:"cpu_seconds"`
	MemoryLimitMB int                       `yaml:"memory_limit_mb"`
	Runtimes      map[string]RuntimeProfile `yaml:"runtimes"`
}

// SamplingConfig controls validation sampling.
type SamplingConfig struct {
	DefaultRate float64            `yaml:"default_rate"`
	TaskRates   map[string]float64 `yaml:"task_rates"`
}

// ValidateConfig tunes output comparison.
type ValidateConfig struct {
	NumericTolerance float64 `yaml:"numeric_tolerance"`
	BatchWorkers     int     `yaml:"batch_workers"`
}

// OracleConfig configures the optional LLM oracle used to produce expected
// outputs for sampled executions.
type OracleConfig struct {
	Enabled        bool   `yaml:"enabled"`
	APIKey         string `yaml:"api_key"` // usually ${OPENAI_API_KEY}
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ServerConfig configures the HTTP runtime surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig configures record persistence. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Load reads, substitutes and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(substituteEnv(data), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, suitable for
// tests and for running without a config file.
func Default() *Config {
	cfg := &Config{Cache: CacheConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces ${VAR} references with environment values.
// Unset variables are left as-is so validation can report them in context.
func substituteEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		if v, ok := os.LookupEnv(string(name)); ok {
			return []byte(v)
		}
		return m
	})
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Cache.TaskTTLMinutes <= 0 {
		c.Cache.TaskTTLMinutes = 60
	}
	if c.Cache.ArtifactTTLMins <= 0 {
		c.Cache.ArtifactTTLMins = 30
	}
	if c.Cache.StatsTTLMinutes <= 0 {
		c.Cache.StatsTTLMinutes = 15
	}
	if c.Cache.SweepSeconds <= 0 {
		c.Cache.SweepSeconds = 60
	}
	if c.Synthesis.BaseURL == "" {
		c.Synthesis.BaseURL = "http://localhost:9090"
	}
	if c.Synthesis.TimeoutSeconds <= 0 {
		c.Synthesis.TimeoutSeconds = 30
	}
	if c.Synthesis.MaxAttempts <= 0 {
		c.Synthesis.MaxAttempts = 3
	}
	if c.Sandbox.TimeoutMS <= 0 {
		c.Sandbox.TimeoutMS = 1000
	}
	if c.Sandbox.CPUSeconds <= 0 {
		c.Sandbox.CPUSeconds = 5
	}
	if c.Sandbox.MemoryLimitMB <= 0 {
		c.Sandbox.MemoryLimitMB = 256
	}
	if c.Sandbox.Runtimes == nil {
		c.Sandbox.Runtimes = map[string]RuntimeProfile{}
	}
	if _, ok := c.Sandbox.Runtimes["python3"]; !ok {
		// Isolated mode: no site packages, no user env, no PYTHON* vars.
		c.Sandbox.Runtimes["python3"] = RuntimeProfile{
			Command: "python3",
			Args:    []string{"-I", "-S", "-E"},
		}
	}
	if c.Sampling.DefaultRate <= 0 {
		c.Sampling.DefaultRate = 0.1
	}
	if c.Validate.NumericTolerance <= 0 {
		c.Validate.NumericTolerance = 1e-4
	}
	if c.Validate.BatchWorkers <= 0 {
		c.Validate.BatchWorkers = 8
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = "gpt-4o-mini"
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 30
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

func (c *Config) validate() error {
	if c.Sampling.DefaultRate < 0 || c.Sampling.DefaultRate > 1 {
		return fmt.Errorf("sampling.default_rate %v out of [0,1]", c.Sampling.DefaultRate)
	}
	for task, rate := range c.Sampling.TaskRates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("sampling.task_rates[%s] %v out of [0,1]", task, rate)
		}
	}
	if c.Oracle.Enabled && c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle.enabled requires oracle.api_key")
	}
	return nil
}

// Timeout returns the per-attempt synthesis timeout as a duration.
func (c SynthesisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TaskTTL returns the task-metadata TTL as a duration.
func (c CacheConfig) TaskTTL() time.Duration {
	return time.Duration(c.TaskTTLMinutes) * time.Minute
}

// ArtifactTTL returns the active-artifact TTL as a duration.
func (c CacheConfig) ArtifactTTL() time.Duration {
	return time.Duration(c.ArtifactTTLMins) * time.Minute
}

// StatsTTL returns the execution-statistics TTL as a duration.
func (c CacheConfig) StatsTTL() time.Duration {
	return time.Duration(c.StatsTTLMinutes) * time.Minute
}
