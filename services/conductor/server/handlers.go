// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the run control surface over HTTP.
//
// It is a thin observer layer: runs are started, inspected, streamed,
// and cancelled through the schedule.Registry; the server holds no run
// state of its own.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianConductor/services/conductor/events"
	"github.com/AleutianAI/AleutianConductor/services/conductor/schedule"
)

// keepAliveInterval is how often an idle SSE stream sends a comment.
const keepAliveInterval = 15 * time.Second

// StartRunRequest is the body of POST /v1/runs.
type StartRunRequest struct {
	// Goal is the natural-language goal to plan and execute.
	Goal string `json:"goal" binding:"required"`
}

// RunSummary is the compact run representation for list responses.
type RunSummary struct {
	RunID string         `json:"run_id"`
	Goal  string         `json:"goal"`
	State schedule.State `json:"state"`
}

// HealthCheck reports process liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StartRun handles POST /v1/runs.
//
// # Description
//
// Starts a run for the posted goal and returns its id immediately; the
// run executes in the background. Clients follow progress via the run
// snapshot or the SSE event stream.
func StartRun(reg *schedule.Registry, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "goal is required"})
			return
		}

		// The run must outlive this request.
		run, err := reg.Start(context.WithoutCancel(c.Request.Context()), req.Goal)
		if err != nil {
			logger.Error("failed to start run", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start run"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"run_id": run.ID(),
			"state":  run.State(),
		})
	}
}

// ListRuns handles GET /v1/runs.
func ListRuns(reg *schedule.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs := reg.List()
		out := make([]RunSummary, 0, len(runs))
		for _, r := range runs {
			out = append(out, RunSummary{RunID: r.ID(), Goal: r.Goal(), State: r.State()})
		}
		c.JSON(http.StatusOK, gin.H{"runs": out})
	}
}

// GetRun handles GET /v1/runs/:runId.
//
// # Description
//
// Returns an immutable snapshot: state, graph, per-node results, and
// the parallelism report. Safe to call at any point in the run's life.
func GetRun(reg *schedule.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := reg.Get(c.Param("runId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusOK, run.Snapshot())
	}
}

// CancelRun handles POST /v1/runs/:runId/cancel.
func CancelRun(reg *schedule.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := reg.Cancel(c.Param("runId")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
	}
}

// Reset handles POST /v1/reset.
func Reset(reg *schedule.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		cancelled := reg.Reset()
		c.JSON(http.StatusOK, gin.H{"cancelled_runs": cancelled})
	}
}

// StreamRunEvents handles GET /v1/runs/:runId/events.
//
// # Description
//
// Streams the run's events as SSE. Buffered events are replayed first
// (resumable via the "after" query parameter, a sequence number), then
// live events follow until the run finishes or the client disconnects.
//
// The live channel is only a wakeup: every write goes through the
// emitter's replay buffer, which is ordered by sequence number. Per-task
// sinks and the scheduler loop emit concurrently, so channel delivery
// order is not sequence order, and the bounded channel may drop under
// burst; resyncing from the buffer absorbs both. Keepalive ticks resync
// too, so a dropped run_finished still closes the stream.
func StreamRunEvents(reg *schedule.Registry, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := reg.Get(c.Param("runId"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}

		after, err := strconv.Atoi(c.DefaultQuery("after", "0"))
		if err != nil || after < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a non-negative integer"})
			return
		}

		SetSSEHeaders(c.Writer)
		w, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		// Subscribe before replay so no event falls between the two.
		live := make(chan events.Event, 256)
		subID := run.Events().Subscribe(events.ChannelHandler(live, true))
		defer run.Events().Unsubscribe(subID)

		last := after

		// flush writes every buffered event past last, in sequence
		// order. Returns true once run_finished has been written.
		flush := func() (bool, error) {
			for _, ev := range run.Events().EventsSince(last) {
				if err := w.WriteEvent(ev); err != nil {
					return false, err
				}
				last = ev.Sequence
				if ev.Type == events.TypeRunFinished {
					return true, nil
				}
			}
			return false, nil
		}

		if finished, err := flush(); err != nil || finished {
			return
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-run.Done():
				// Terminal; drain whatever the buffer holds and close.
				_, _ = flush()
				return
			case <-ticker.C:
				if finished, err := flush(); err != nil || finished {
					return
				}
				if err := w.WriteKeepAlive(); err != nil {
					return
				}
			case ev := <-live:
				if ev.Sequence <= last {
					continue
				}
				finished, err := flush()
				if err != nil {
					logger.Debug("sse client write failed",
						slog.String("run_id", run.ID()),
						slog.String("error", err.Error()),
					)
					return
				}
				if finished {
					return
				}
			}
		}
	}
}
