// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8711" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if got := cfg.Scheduler.PollInterval(); got != 100*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 100ms", got)
	}
	if cfg.Scheduler.SpeculativeStart {
		t.Error("SpeculativeStart defaults to true, want false")
	}
	if cfg.Models.Planner == "" || cfg.Models.Executor == "" {
		t.Error("default models are empty")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	body := `
server:
  addr: ":9999"
scheduler:
  poll_interval_ms: 50
  max_concurrent: 8
  speculative_start: true
models:
  planner: big-model
  executor: small-model
  temperature: 0.7
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Scheduler.PollIntervalMs != 50 || cfg.Scheduler.MaxConcurrent != 8 || !cfg.Scheduler.SpeculativeStart {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Models.Planner != "big-model" || cfg.Models.Executor != "small-model" {
		t.Errorf("Models = %+v", cfg.Models)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Scheduler.PollIntervalMs != 100 {
		t.Errorf("PollIntervalMs = %d, want default 100", cfg.Scheduler.PollIntervalMs)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONDUCTOR_SERVER_ADDR", ":4242")
	t.Setenv("CONDUCTOR_POLL_INTERVAL_MS", "25")
	t.Setenv("CONDUCTOR_MAX_CONCURRENT", "4")
	t.Setenv("CONDUCTOR_SPECULATIVE_START", "true")
	t.Setenv("CONDUCTOR_PLANNER_MODEL", "env-planner")
	t.Setenv("CONDUCTOR_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":4242" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Scheduler.PollIntervalMs != 25 || cfg.Scheduler.MaxConcurrent != 4 || !cfg.Scheduler.SpeculativeStart {
		t.Errorf("Scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Models.Planner != "env-planner" {
		t.Errorf("Models.Planner = %q", cfg.Models.Planner)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("CONDUCTOR_POLL_INTERVAL_MS", "soon")
	if _, err := Load(""); err == nil {
		t.Error("Load() succeeded with non-numeric poll interval")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() succeeded with missing explicit file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero poll interval", func(c *Config) { c.Scheduler.PollIntervalMs = 0 }},
		{"negative max concurrent", func(c *Config) { c.Scheduler.MaxConcurrent = -1 }},
		{"empty planner model", func(c *Config) { c.Models.Planner = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("CONDUCTOR_TEST_KEY", "sk-123")
	m := ModelConfig{APIKeyEnv: "CONDUCTOR_TEST_KEY"}
	if got := m.APIKey(); got != "sk-123" {
		t.Errorf("APIKey() = %q", got)
	}
	if got := (ModelConfig{}).APIKey(); got != "" {
		t.Errorf("APIKey() with no env = %q", got)
	}
}
