// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianConductor/services/conductor/events"
	"github.com/AleutianAI/AleutianConductor/services/conductor/graph"
	"github.com/AleutianAI/AleutianConductor/services/conductor/plan"
	"github.com/AleutianAI/AleutianConductor/services/conductor/schedule"
	"github.com/AleutianAI/AleutianConductor/services/conductor/task"
)

const testPlan = `{"nodes":[` +
	`{"id":"a","name":"A","context":"do a"},` +
	`{"id":"b","name":"B","context":"do b"}],` +
	`"edges":[{"sourceId":"a","targetId":"b"}]}`

func newTestRouter(t *testing.T) (*gin.Engine, *schedule.Registry) {
	t.Helper()

	planner := plan.PlannerFunc(func(ctx context.Context, goal string) (<-chan plan.Chunk, error) {
		ch := make(chan plan.Chunk, 1)
		ch <- plan.Chunk{Text: testPlan}
		close(ch)
		return ch, nil
	})
	runner := task.RunnerFunc(func(ctx context.Context, node graph.Node, g *graph.Graph, prior map[string]string, emit task.Sink) (task.Outcome, error) {
		return task.Done("done " + node.ID), nil
	})

	s, err := schedule.New(planner, runner, schedule.WithPollInterval(2*time.Millisecond))
	require.NoError(t, err)

	reg := schedule.NewRegistry(s)
	return New(reg, slog.Default()), reg
}

func startRun(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{"goal":"test goal"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func waitForRun(t *testing.T, reg *schedule.Registry, id string) {
	t.Helper()
	run, err := reg.Get(id)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStartRun_RequiresGoal(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunLifecycleOverHTTP(t *testing.T) {
	router, reg := newTestRouter(t)

	id := startRun(t, router)
	waitForRun(t, reg, id)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap schedule.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, schedule.StateGoalReached, snap.State)
	assert.Equal(t, "test goal", snap.Goal)
	assert.Len(t, snap.Results, 2)
	assert.Equal(t, task.StatusDone, snap.Results["a"].Status)
	assert.Equal(t, 2, snap.CriticalPath)
	assert.InDelta(t, 1.0, snap.SpeedupFactor, 0.001)
}

func TestGetRun_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	router, reg := newTestRouter(t)

	id := startRun(t, router)
	waitForRun(t, reg, id)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Runs []RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, id, resp.Runs[0].RunID)
	assert.Equal(t, schedule.StateGoalReached, resp.Runs[0].State)
}

func TestCancelRun(t *testing.T) {
	router, _ := newTestRouter(t)

	id := startRun(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs/"+id+"/cancel", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs/missing/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReset(t *testing.T) {
	router, _ := newTestRouter(t)

	startRun(t, router)
	startRun(t, router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CancelledRuns int `json:"cancelled_runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.CancelledRuns)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	assert.Contains(t, rec.Body.String(), `"runs":[]`)
}

func TestStreamRunEvents_ReplaysFinishedRun(t *testing.T) {
	router, reg := newTestRouter(t)

	id := startRun(t, router)
	waitForRun(t, reg, id)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+id+"/events", nil))

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: run_started")
	assert.Contains(t, body, "event: node_scheduled")
	assert.Contains(t, body, "event: run_finished")

	// The stream closes with the terminal event.
	idx := strings.Index(body, "event: run_finished")
	require.Greater(t, idx, 0)
	rest := body[idx:]
	assert.Equal(t, 1, strings.Count(rest, "event: "), "events after run_finished")
}

func TestStreamRunEvents_ResumesAfterSequence(t *testing.T) {
	router, reg := newTestRouter(t)

	id := startRun(t, router)
	waitForRun(t, reg, id)

	run, err := reg.Get(id)
	require.NoError(t, err)
	all := run.Events().EventsSince(0)
	require.NotEmpty(t, all)
	cut := all[len(all)-2].Sequence

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+id+"/events?after="+strconv.Itoa(cut), nil))

	body := rec.Body.String()
	assert.NotContains(t, body, "event: run_started")
	assert.Contains(t, body, "event: run_finished")
}

func TestStreamRunEvents_LiveStreamIsOrderedAndGapless(t *testing.T) {
	// Three independent tasks emit token packets from their own
	// goroutines, so events reach the live channel in arbitrary order.
	// The stream must still come out gapless in sequence order and close
	// with the terminal event.
	widePlan := `{"nodes":[` +
		`{"id":"a","name":"A","context":"do a"},` +
		`{"id":"b","name":"B","context":"do b"},` +
		`{"id":"c","name":"C","context":"do c"}],` +
		`"edges":[]}`

	planner := plan.PlannerFunc(func(ctx context.Context, goal string) (<-chan plan.Chunk, error) {
		ch := make(chan plan.Chunk, 1)
		ch <- plan.Chunk{Text: widePlan}
		close(ch)
		return ch, nil
	})
	runner := task.RunnerFunc(func(ctx context.Context, node graph.Node, g *graph.Graph, prior map[string]string, emit task.Sink) (task.Outcome, error) {
		for i := 0; i < 5; i++ {
			emit(node.ID, task.Packet{Kind: task.PacketToken, Token: "t"})
		}
		return task.Done("done " + node.ID), nil
	})

	s, err := schedule.New(planner, runner, schedule.WithPollInterval(2*time.Millisecond))
	require.NoError(t, err)
	reg := schedule.NewRegistry(s)
	router := New(reg, slog.Default())

	id := startRun(t, router)

	// The handler returns once the run reaches run_finished, so serving
	// the request synchronously captures the whole live stream.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+id+"/events", nil))

	var seqs []int
	var lastType events.Type
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev events.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		seqs = append(seqs, ev.Sequence)
		lastType = ev.Type
	}

	require.NotEmpty(t, seqs)
	assert.Equal(t, events.TypeRunFinished, lastType)
	for i, seq := range seqs {
		assert.Equal(t, seqs[0]+i, seq, "sequence gap or reorder at index %d: %v", i, seqs)
	}
}

func TestStreamRunEvents_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/missing/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
