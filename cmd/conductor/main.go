// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command conductor plans a natural-language goal into a task graph
// and executes it concurrently.
//
// Usage:
//
//	conductor run "research X and write a summary"
//	conductor serve
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianConductor/pkg/logging"
	"github.com/AleutianAI/AleutianConductor/services/conductor/config"
	"github.com/AleutianAI/AleutianConductor/services/conductor/events"
	"github.com/AleutianAI/AleutianConductor/services/conductor/plan"
	"github.com/AleutianAI/AleutianConductor/services/conductor/schedule"
	"github.com/AleutianAI/AleutianConductor/services/conductor/server"
	"github.com/AleutianAI/AleutianConductor/services/conductor/task"
)

var (
	configPath string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "conductor",
		Short: "Plan a goal into a task graph and run it concurrently",
		Long: `Conductor decomposes a natural-language goal into a DAG of subtasks
with an LLM planner and executes the subtasks concurrently as their
dependencies complete, streaming progress as it goes.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run <goal>",
		Short: "Execute a goal and print per-task results",
		Args:  cobra.ExactArgs(1),
		RunE:  runGoal,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the run control API over HTTP",
		RunE:  serve,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to conductor.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildScheduler assembles the engine from configuration.
func buildScheduler(cfg config.Config, logger *logging.Logger) (*schedule.Scheduler, error) {
	apiKey := cfg.Models.APIKey()
	if apiKey == "" && cfg.Models.BaseURL == "" {
		return nil, fmt.Errorf("no API key in $%s and no base_url configured", cfg.Models.APIKeyEnv)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.Models.BaseURL != "" {
		clientCfg.BaseURL = cfg.Models.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	planner := plan.NewOpenAIPlanner(client, cfg.Models.Planner, float32(cfg.Models.Temperature), logger.Slog())
	runner := task.NewOpenAIRunner(client, cfg.Models.Executor, logger.Slog())

	return schedule.New(planner, runner,
		schedule.WithPollInterval(cfg.Scheduler.PollInterval()),
		schedule.WithMaxConcurrent(cfg.Scheduler.MaxConcurrent),
		schedule.WithSpeculativeStart(cfg.Scheduler.SpeculativeStart),
		schedule.WithLogger(logger.Slog()),
	)
}

func newLogger(cfg config.Config) *logging.Logger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if verbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{
		Level:   level,
		Service: "conductor",
		JSON:    cfg.Logging.Format == "json",
	})
}

// runGoal executes one goal in the foreground.
func runGoal(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Close()

	s, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := s.Start(ctx, args[0])
	if err != nil {
		return err
	}

	run.Events().Subscribe(func(ev *events.Event) {
		switch data := ev.Data.(type) {
		case *events.NodeScheduledData:
			fmt.Printf("→ %s (%s)\n", data.Name, ev.NodeID)
		case *events.PlanFinishedData:
			fmt.Printf("plan complete: %d tasks\n", data.TaskCount)
		}
	}, events.TypeNodeScheduled, events.TypePlanFinished)

	waitErr := run.Wait(ctx)

	snap := run.Snapshot()
	fmt.Println()
	for _, n := range snap.Graph.Nodes() {
		if n.IsRoot() {
			continue
		}
		res, ok := snap.Results[n.ID]
		if !ok {
			fmt.Printf("[%s] %s: never started\n", n.ID, n.Name)
			continue
		}
		switch res.Status {
		case task.StatusDone:
			fmt.Printf("[%s] %s: done\n%s\n", n.ID, n.Name, res.Value)
		case task.StatusWaitingOnHuman:
			fmt.Printf("[%s] %s: waiting on human: %s\n", n.ID, n.Name, res.Reason)
		case task.StatusError:
			fmt.Printf("[%s] %s: error (%s): %s\n", n.ID, n.Name, res.Severity, res.Detail)
		default:
			fmt.Printf("[%s] %s: %s\n", n.ID, n.Name, res.Status)
		}
	}
	fmt.Printf("\nstate: %s  critical path: %d  speedup: %.2f\n",
		snap.State, snap.CriticalPath, snap.SpeedupFactor)

	if waitErr != nil && !errors.Is(waitErr, schedule.ErrRunCancelled) {
		return waitErr
	}
	return nil
}

// serve runs the HTTP control surface until interrupted.
func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer logger.Close()

	s, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}
	reg := schedule.NewRegistry(s)
	router := server.New(reg, logger.Slog())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("conductor listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	reg.Reset()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
