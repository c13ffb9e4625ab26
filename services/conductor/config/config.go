// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads conductor configuration from YAML with
// environment overrides.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// CONDUCTOR_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full conductor configuration.
type Config struct {
	// Server configures the HTTP observer API.
	Server ServerConfig `yaml:"server"`

	// Scheduler configures the run loop.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Models configures the planning and execution collaborators.
	Models ModelConfig `yaml:"models"`

	// Logging configures slog output.
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	// Addr is the listen address, e.g. ":8711".
	Addr string `yaml:"addr"`
}

type SchedulerConfig struct {
	// PollIntervalMs is the scheduling loop tick period in milliseconds.
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// MaxConcurrent caps concurrently executing tasks. 0 = unbounded.
	MaxConcurrent int64 `yaml:"max_concurrent"`

	// SpeculativeStart runs the first planned task before planning
	// finishes.
	SpeculativeStart bool `yaml:"speculative_start"`
}

// PollInterval returns the tick period as a duration.
func (s SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMs) * time.Millisecond
}

type ModelConfig struct {
	// Planner is the model used to decompose goals into plans.
	Planner string `yaml:"planner"`

	// Executor is the model used to run individual tasks.
	Executor string `yaml:"executor"`

	// Temperature applies to planning requests.
	Temperature float64 `yaml:"temperature"`

	// BaseURL overrides the OpenAI-compatible endpoint, e.g. a local
	// vLLM or Ollama gateway. Empty uses the provider default.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8711"},
		Scheduler: SchedulerConfig{
			PollIntervalMs:   100,
			MaxConcurrent:    0,
			SpeculativeStart: false,
		},
		Models: ModelConfig{
			Planner:     "gpt-4o",
			Executor:    "gpt-4o-mini",
			Temperature: 0.2,
			APIKeyEnv:   "OPENAI_API_KEY",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from the given path.
//
// Inputs:
//
//	path - YAML file path. Empty skips the file layer; a missing file
//	       at an explicit path is an error.
//
// Outputs:
//
//	Config - Defaults overlaid with the file and CONDUCTOR_* env vars.
//	error - Non-nil on unreadable file, bad YAML, or invalid values.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
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

// applyEnv overlays CONDUCTOR_* environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("CONDUCTOR_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CONDUCTOR_POLL_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CONDUCTOR_POLL_INTERVAL_MS %q: %w", v, err)
		}
		cfg.Scheduler.PollIntervalMs = n
	}
	if v := os.Getenv("CONDUCTOR_MAX_CONCURRENT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CONDUCTOR_MAX_CONCURRENT %q: %w", v, err)
		}
		cfg.Scheduler.MaxConcurrent = n
	}
	if v := os.Getenv("CONDUCTOR_SPECULATIVE_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CONDUCTOR_SPECULATIVE_START %q: %w", v, err)
		}
		cfg.Scheduler.SpeculativeStart = b
	}
	if v := os.Getenv("CONDUCTOR_PLANNER_MODEL"); v != "" {
		cfg.Models.Planner = v
	}
	if v := os.Getenv("CONDUCTOR_EXECUTOR_MODEL"); v != "" {
		cfg.Models.Executor = v
	}
	if v := os.Getenv("CONDUCTOR_OPENAI_BASE_URL"); v != "" {
		cfg.Models.BaseURL = v
	}
	if v := os.Getenv("CONDUCTOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Scheduler.PollIntervalMs <= 0 {
		return fmt.Errorf("scheduler.poll_interval_ms must be positive, got %d", c.Scheduler.PollIntervalMs)
	}
	if c.Scheduler.MaxConcurrent < 0 {
		return fmt.Errorf("scheduler.max_concurrent must not be negative, got %d", c.Scheduler.MaxConcurrent)
	}
	if c.Models.Planner == "" || c.Models.Executor == "" {
		return fmt.Errorf("models.planner and models.executor must be set")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// APIKey resolves the API key from the configured environment variable.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}
