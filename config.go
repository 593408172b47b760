package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration of the CLI.
type Config struct {
	Trial   TrialSettings `yaml:"trial"`
	Demo    DemoSettings  `yaml:"demo"`
	Logging LoggingConfig `yaml:"logging"`
}

// TrialSettings configures the `sum` trial suite.
type TrialSettings struct {
	Size       int    `yaml:"size"`
	Workers    []int  `yaml:"workers"`
	Iterations int    `yaml:"iterations"`
	Operator   string `yaml:"operator"`
	Schedule   string `yaml:"schedule"`
	Chunk      int    `yaml:"chunk"`
	Random     bool   `yaml:"random"`
	Seed       uint64 `yaml:"seed"`
	MaxValue   int64  `yaml:"max_value"`
}

// DemoSettings configures the small construct demos.
type DemoSettings struct {
	Workers            int `yaml:"workers"`
	TwoCriticalWorkers int `yaml:"two_critical_workers"`
	TwoCriticalSize    int `yaml:"two_critical_size"`
	ScopingN           int `yaml:"scoping_n"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Environment variables that override the file.
const (
	EnvWorkers  = "PARBASICS_WORKERS"
	EnvSize     = "PARBASICS_SIZE"
	EnvLogLevel = "PARBASICS_LOG_LEVEL"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	trial := DefaultTrialConfig()
	return &Config{
		Trial: TrialSettings{
			Size:       trial.Size,
			Workers:    trial.Workers,
			Iterations: trial.Iterations,
			Operator:   trial.Operator.String(),
			Schedule:   trial.Schedule.String(),
			MaxValue:   trial.MaxValue,
		},
		Demo: DemoSettings{
			Workers:            runtime.NumCPU(),
			TwoCriticalWorkers: 30,
			TwoCriticalSize:    1_000_000,
			ScopingN:           13,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads a YAML config from path on top of the defaults and
// applies environment overrides. A missing file, or an empty path, yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. A worker list
// sets every trial worker count and the first entry becomes the demo team
// size.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(EnvWorkers); v != "" {
		workers, err := parseIntList(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Trial.Workers = workers
		c.Demo.Workers = workers[0]
	}
	if v := os.Getenv(EnvSize); v != "" {
		size, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer: %w", EnvSize, v, ErrInvalidConfiguration)
		}
		c.Trial.Size = size
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.TrialConfig(); err != nil {
		return err
	}
	if c.Demo.Workers <= 0 {
		return fmt.Errorf("demo workers must be positive, got %d: %w", c.Demo.Workers, ErrInvalidConfiguration)
	}
	if c.Demo.TwoCriticalWorkers <= 0 {
		return fmt.Errorf("two_critical_workers must be positive, got %d: %w", c.Demo.TwoCriticalWorkers, ErrInvalidConfiguration)
	}
	if c.Demo.TwoCriticalSize < 0 || c.Demo.ScopingN < 0 {
		return fmt.Errorf("demo sizes must not be negative: %w", ErrInvalidConfiguration)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// TrialConfig converts the trial section into a TrialConfig.
func (c *Config) TrialConfig() (TrialConfig, error) {
	op, err := ParseOperator(c.Trial.Operator)
	if err != nil {
		return TrialConfig{}, err
	}
	schedule, err := ParseSchedule(c.Trial.Schedule)
	if err != nil {
		return TrialConfig{}, err
	}
	tc := TrialConfig{
		Size:       c.Trial.Size,
		Workers:    c.Trial.Workers,
		Iterations: c.Trial.Iterations,
		Operator:   op,
		Schedule:   schedule,
		ChunkSize:  c.Trial.Chunk,
		Random:     c.Trial.Random,
		Seed:       c.Trial.Seed,
		MaxValue:   c.Trial.MaxValue,
	}
	if err := tc.Validate(); err != nil {
		return TrialConfig{}, err
	}
	return tc, nil
}

// DemoConfig returns the team configuration the demos run on.
func (c *Config) DemoConfig() ReduceConfig {
	return DefaultReduceConfig().WithWorkers(c.Demo.Workers)
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer: %w", field, ErrInvalidConfiguration)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty list %q: %w", s, ErrInvalidConfiguration)
	}
	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
