// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if LevelDebug.String() != "debug" || LevelError.String() != "error" {
		t.Error("Level.String() mismatch")
	}
}

func TestLogger_ExporterReceivesEntries(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelDebug,
		Service:  "conductor-test",
		Quiet:    true,
		Exporter: exp,
	})

	logger.Info("run started", "run_id", "abc123", "tasks", 3)
	logger.Warn("task retried")

	entries := exp.Entries()
	if len(entries) != 2 {
		t.Fatalf("exporter captured %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.Level != "info" || first.Message != "run started" {
		t.Errorf("entry = %+v", first)
	}
	if first.Service != "conductor-test" {
		t.Errorf("Service = %q", first.Service)
	}
	if first.Attrs["run_id"] != "abc123" {
		t.Errorf("Attrs = %v", first.Attrs)
	}
	if first.Attrs["tasks"] != 3 {
		t.Errorf("Attrs[tasks] = %v", first.Attrs["tasks"])
	}
}

func TestLogger_ErrorPathStillExports(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Quiet:    true,
		Exporter: exp,
	})

	logger.Debug("below level")
	logger.Error("visible")

	entries := exp.Entries()
	if len(entries) != 2 {
		t.Fatalf("exporter captured %d entries, want 2", len(entries))
	}
	if entries[1].Level != "error" {
		t.Errorf("last entry level = %q", entries[1].Level)
	}
}

func TestLogger_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		Service: "filetest",
		Quiet:   true,
		LogDir:  dir,
	})

	logger.Info("persisted line", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := filepath.Join(dir, "filetest_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"persisted line"`) {
		t.Errorf("log file missing entry: %s", data)
	}
	if !strings.Contains(string(data), `"service":"filetest"`) {
		t.Errorf("log file missing service attribute: %s", data)
	}
}

func TestLogger_UnwritableLogDirDegrades(t *testing.T) {
	// A file where the directory should be makes MkdirAll fail.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := New(Config{Level: LevelInfo, LogDir: blocked, Quiet: true})
	logger.Info("still works")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestLogger_With(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Level: LevelDebug, Quiet: true, Exporter: exp})

	child := logger.With("run_id", "xyz")
	child.Info("scoped")

	if child.Slog() == nil {
		t.Fatal("Slog() = nil")
	}
	if len(exp.Entries()) != 1 {
		t.Fatalf("exporter captured %d entries, want 1", len(exp.Entries()))
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}

func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two", "dangling"})
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("argsToMap = %v", m)
	}
	if _, ok := m["dangling"]; ok {
		t.Error("dangling key should be dropped")
	}
	if argsToMap(nil) != nil {
		t.Error("argsToMap(nil) should be nil")
	}
}
