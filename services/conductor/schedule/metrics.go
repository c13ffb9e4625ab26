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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsStarted counts runs started.
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "runs_started_total",
		Help:      "Total runs started",
	})

	// runsFinished counts runs by terminal state.
	// Labels: state (goal_reached, failed, cancelled)
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "runs_finished_total",
		Help:      "Total runs finished by terminal state",
	}, []string{"state"})

	// runDuration measures end-to-end run latency.
	// Labels: state
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "run_duration_seconds",
		Help:      "End-to-end run duration in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"state"})

	// tasksDispatched counts tasks handed to runners.
	tasksDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "tasks_dispatched_total",
		Help:      "Total tasks dispatched to runners",
	})

	// tasksFinished counts task outcomes.
	// Labels: outcome (done, error, waiting_on_human)
	tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "tasks_finished_total",
		Help:      "Total task outcomes",
	}, []string{"outcome"})

	// taskDuration measures single task execution latency.
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// tasksInFlight tracks concurrently executing tasks.
	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "tasks_in_flight",
		Help:      "Tasks currently executing",
	})

	// layerSize tracks the distribution of dispatch layer widths.
	layerSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conductor",
		Subsystem: "scheduler",
		Name:      "layer_size",
		Help:      "Number of tasks dispatched together in one layer",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 12, 16, 24, 32},
	})
)
