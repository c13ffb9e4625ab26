// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/AleutianConductor/services/conductor/events"
	"github.com/AleutianAI/AleutianConductor/services/conductor/graph"
	"github.com/AleutianAI/AleutianConductor/services/conductor/plan"
	"github.com/AleutianAI/AleutianConductor/services/conductor/task"
)

var tracer = otel.Tracer("aleutian.conductor")

// DefaultPollInterval is the scheduler loop's tick period.
const DefaultPollInterval = 100 * time.Millisecond

var (
	// ErrNilPlanner is returned when New is called without a planner.
	ErrNilPlanner = errors.New("planner must not be nil")

	// ErrNilRunner is returned when New is called without a runner.
	ErrNilRunner = errors.New("runner must not be nil")

	// ErrEmptyGoal is returned when Start is called with an empty goal.
	ErrEmptyGoal = errors.New("goal must not be empty")
)

// Scheduler starts and drives runs.
//
// Thread Safety: Scheduler is safe for concurrent use; each Start
// creates an independent run.
type Scheduler struct {
	planner       plan.Planner
	runner        task.Runner
	pollInterval  time.Duration
	maxConcurrent int64
	speculative   bool
	logger        *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPollInterval sets the loop tick period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMaxConcurrent caps concurrently executing tasks. Zero means
// unbounded.
func WithMaxConcurrent(n int64) Option {
	return func(s *Scheduler) {
		s.maxConcurrent = n
	}
}

// WithSpeculativeStart makes runs dispatch the first planned task as
// soon as the ingester discovers it, in parallel with planning.
func WithSpeculativeStart(enabled bool) Option {
	return func(s *Scheduler) {
		s.speculative = enabled
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scheduler.
//
// Inputs:
//
//	planner - The planning collaborator. Must not be nil.
//	runner - The execution collaborator. Must not be nil.
//	opts - Optional configuration.
func New(planner plan.Planner, runner task.Runner, opts ...Option) (*Scheduler, error) {
	if planner == nil {
		return nil, ErrNilPlanner
	}
	if runner == nil {
		return nil, ErrNilRunner
	}
	s := &Scheduler{
		planner:      planner,
		runner:       runner,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run is the handle to one in-flight or finished run.
//
// Thread Safety: Run is safe for concurrent use.
type Run struct {
	id      string
	goal    string
	st      *RunState
	emitter *events.Emitter
	cancel  context.CancelFunc
	sem     *semaphore.Weighted

	started time.Time
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	mu    sync.RWMutex
	state State
	err   error
}

// ID returns the run's identifier.
func (r *Run) ID() string {
	return r.id
}

// Goal returns the run's natural-language goal.
func (r *Run) Goal() string {
	return r.goal
}

// Events returns the run's event emitter for subscription and replay.
func (r *Run) Events() *events.Emitter {
	return r.emitter
}

// State returns the run's current lifecycle phase.
func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the terminal error, nil while running or on success.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Done returns a channel closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel aborts the run. Idempotent; a run never resumes after
// cancellation.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run terminates or ctx expires.
//
// Outputs:
//
//	error - The run's terminal error, ErrRunCancelled for cancelled
//	        runs, or ctx.Err() if ctx expired first.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return r.Err()
	}
}

// Snapshot captures an immutable view of the run.
func (r *Run) Snapshot() Snapshot {
	r.mu.RLock()
	state, runErr := r.state, r.err
	r.mu.RUnlock()

	g := r.st.Graph()
	snap := Snapshot{
		RunID:         r.id,
		Goal:          r.goal,
		State:         state,
		Graph:         g,
		Results:       r.st.Results(),
		PlanDone:      r.st.PlanDone(),
		CriticalPath:  g.CriticalPathLength(),
		SpeedupFactor: g.SpeedupFactor(),
		TakenAt:       time.Now().UTC(),
	}
	if runErr != nil {
		snap.Error = runErr.Error()
	}
	return snap
}

// Start begins a run and returns its handle immediately.
//
// Description:
//
//	Seeds run state with a root-only graph, launches planning, and
//	starts the scheduling loop. The returned handle observes and
//	controls the run; use Wait or Done for completion.
//
// Inputs:
//
//	ctx - Governs the whole run; cancelling it cancels the run.
//	goal - The user's natural-language goal. Must not be empty.
func (s *Scheduler) Start(ctx context.Context, goal string) (*Run, error) {
	if ctx == nil {
		return nil, task.ErrNilContext
	}
	if goal == "" {
		return nil, ErrEmptyGoal
	}

	runID := uuid.NewString()[:12] // 48 bits of entropy
	base := graph.NewWithID(runID, graph.Root(goal))

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		id:      runID,
		goal:    goal,
		st:      NewRunState(base),
		emitter: events.NewEmitter(runID),
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
		state:   StatePlanning,
	}
	if s.maxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(s.maxConcurrent)
	}

	runsStarted.Inc()
	s.logger.Info("run started",
		slog.String("run_id", runID),
		slog.String("goal", goal),
	)

	go s.execute(runCtx, r)
	return r, nil
}

// execute drives one run to a terminal state.
func (s *Scheduler) execute(ctx context.Context, r *Run) {
	ctx, span := tracer.Start(ctx, "conductor.Run",
		trace.WithAttributes(
			attribute.String("run.id", r.id),
		),
	)
	defer span.End()

	r.emitter.Emit(events.TypeRunStarted, &events.RunStartedData{Goal: r.goal})

	chunks, err := s.planner.Plan(ctx, r.goal)
	if err != nil {
		s.finish(r, span, StateFailed, &PlanFailureError{Cause: err})
		return
	}

	ingester := plan.NewIngester(r.st.Graph(), func(g *graph.Graph) {
		r.st.SetGraph(g)
		r.emitter.Emit(events.TypePlanSnapshot, &events.PlanSnapshotData{
			NodeCount: g.NodeCount(),
			EdgeCount: g.EdgeCount(),
		})
	}, s.ingestOptions(ctx, r)...)

	go func() {
		final, ingestErr := ingester.Ingest(ctx, chunks)
		r.st.SetGraph(final)
		if ingestErr != nil && !errors.Is(ingestErr, context.Canceled) {
			r.st.SetFatal(&PlanFailureError{Cause: ingestErr})
		}
		r.st.SetPlanDone()
		r.emitter.Emit(events.TypePlanFinished, &events.PlanFinishedData{
			TaskCount: final.NodeCount() - 1,
		})
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.finish(r, span, StateCancelled, ErrRunCancelled)
			return
		case <-ticker.C:
		}

		if fatal := r.st.Fatal(); fatal != nil {
			s.finish(r, span, StateFailed, fatal)
			return
		}

		g := r.st.Graph()
		completed := r.st.Completed()
		planDone := r.st.PlanDone()

		if planDone && g.NodeCount() == 1 {
			s.finish(r, span, StateFailed, ErrNoPlan)
			return
		}
		if planDone && allTasksDone(g, completed) {
			s.finish(r, span, StateGoalReached, nil)
			return
		}

		ready := Ready(g, completed, r.st.Scheduled(), planDone)
		if len(ready) > 0 {
			r.setState(StateScheduling)
			layerSize.Observe(float64(len(ready)))
			for _, n := range ready {
				s.dispatch(ctx, r, n)
			}
			continue
		}

		if planDone && r.st.InFlight() == 0 {
			pending := pendingTasks(g, completed)
			if len(pending) > 0 {
				if waiting := waitingTasks(g, r.st.Results()); len(waiting) > 0 {
					s.finish(r, span, StateFailed, &AwaitingHumanError{Waiting: waiting})
					return
				}
				s.finish(r, span, StateFailed, &DeadlockError{Pending: pending})
				return
			}
		}
	}
}

// ingestOptions wires the speculative first-task hook when enabled.
func (s *Scheduler) ingestOptions(ctx context.Context, r *Run) []plan.IngesterOption {
	opts := []plan.IngesterOption{plan.WithLogger(s.logger)}
	if s.speculative {
		opts = append(opts, plan.WithFirstNodeHandler(func(n graph.Node) {
			// Fires at most once; dispatch dedups against the loop.
			s.dispatch(ctx, r, n)
		}))
	}
	return opts
}

// dispatch hands one task to the runner on its own goroutine.
//
// Description:
//
//	MarkScheduled is the dedup point: a node is passed to the runner at
//	most once per run, whichever of the loop or the speculative hook
//	gets there first. The completion handler folds the terminal packet
//	into run state and may claim the fatal error slot.
func (s *Scheduler) dispatch(ctx context.Context, r *Run, n graph.Node) {
	if !r.st.MarkScheduled(n.ID) {
		return
	}

	tasksDispatched.Inc()
	r.emitter.EmitForNode(events.TypeNodeScheduled, n.ID, &events.NodeScheduledData{Name: n.Name})
	s.logger.Debug("task dispatched",
		slog.String("run_id", r.id),
		slog.String("node_id", n.ID),
		slog.String("name", n.Name),
	)

	sink := func(nodeID string, p task.Packet) {
		r.st.ApplyPacket(nodeID, p)
		r.emitter.EmitForNode(events.TypeNodePacket, nodeID, &events.NodePacketData{Packet: p})
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if r.sem != nil {
			if err := r.sem.Acquire(ctx, 1); err != nil {
				sink(n.ID, task.Packet{
					Kind:     task.PacketError,
					Severity: task.SeverityWarn,
					Detail:   "cancelled before execution",
				})
				return
			}
			defer r.sem.Release(1)
		}

		tasksInFlight.Inc()
		defer tasksInFlight.Dec()

		taskCtx, taskSpan := tracer.Start(ctx, "conductor.Task",
			trace.WithAttributes(
				attribute.String("run.id", r.id),
				attribute.String("task.id", n.ID),
				attribute.String("task.name", n.Name),
			),
		)
		defer taskSpan.End()

		start := time.Now()
		sink(n.ID, task.Packet{Kind: task.PacketStarting})

		outcome, err := s.runner.Run(taskCtx, n, r.st.Graph(), priorResults(r.st), sink)
		if err != nil {
			outcome = task.Failed(task.SeverityFatal, err.Error())
		}

		taskDuration.Observe(time.Since(start).Seconds())
		tasksFinished.WithLabelValues(string(outcome.Kind)).Inc()

		sink(n.ID, outcome.Packet())

		if outcome.IsFatal() {
			taskSpan.SetStatus(codes.Error, outcome.Detail)
			r.st.SetFatal(&TaskFailureError{NodeID: n.ID, Detail: outcome.Detail})
		} else {
			taskSpan.SetStatus(codes.Ok, "")
		}
	}()
}

// finish records the terminal state exactly once and winds the run down.
func (s *Scheduler) finish(r *Run, span trace.Span, state State, err error) {
	r.once.Do(func() {
		r.mu.Lock()
		r.state = state
		r.err = err
		r.mu.Unlock()

		// Idempotent; also reached via caller cancellation.
		r.cancel()

		duration := time.Since(r.started)
		runsFinished.WithLabelValues(string(state)).Inc()
		runDuration.WithLabelValues(string(state)).Observe(duration.Seconds())

		g := r.st.Graph()
		data := &events.RunFinishedData{
			State:         string(state),
			SpeedupFactor: g.SpeedupFactor(),
		}
		if err != nil {
			data.Error = err.Error()
		}
		r.emitter.Emit(events.TypeRunFinished, data)

		switch state {
		case StateGoalReached:
			span.SetStatus(codes.Ok, "")
			s.logger.Info("run completed",
				slog.String("run_id", r.id),
				slog.Duration("duration", duration),
				slog.Int("tasks", g.NodeCount()-1),
				slog.Float64("speedup_factor", g.SpeedupFactor()),
			)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, string(state))
			s.logger.Error("run terminated",
				slog.String("run_id", r.id),
				slog.String("state", string(state)),
				slog.Duration("duration", duration),
				slog.String("error", err.Error()),
			)
		}

		close(r.done)
	})
}

// setState advances a non-terminal phase. Terminal states only ever go
// through finish.
func (r *Run) setState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.IsTerminal() {
		r.state = state
	}
}

// allTasksDone reports whether every non-root node is completed.
func allTasksDone(g *graph.Graph, completed map[string]bool) bool {
	for _, n := range g.Nodes() {
		if n.IsRoot() {
			continue
		}
		if !completed[n.ID] {
			return false
		}
	}
	return true
}

// pendingTasks returns non-root node ids not yet completed.
func pendingTasks(g *graph.Graph, completed map[string]bool) []string {
	var pending []string
	for _, n := range g.Nodes() {
		if n.IsRoot() || completed[n.ID] {
			continue
		}
		pending = append(pending, n.ID)
	}
	return pending
}

// waitingTasks returns, in node insertion order, the ids of tasks that
// resolved waitingOnHuman.
func waitingTasks(g *graph.Graph, results map[string]task.Result) []string {
	var waiting []string
	for _, n := range g.Nodes() {
		if res, ok := results[n.ID]; ok && res.Status == task.StatusWaitingOnHuman {
			waiting = append(waiting, n.ID)
		}
	}
	return waiting
}

// priorResults collects the values of completed tasks for the executor
// prompt.
func priorResults(rs *RunState) map[string]string {
	out := make(map[string]string)
	for id, res := range rs.Results() {
		if res.Status == task.StatusDone {
			out[id] = res.Value
		}
	}
	return out
}
