// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"log/slog"
)

// LoggingHandler creates a handler that logs events.
//
// Inputs:
//
//	logger - The slog logger to use.
//	level - The log level for events.
//
// Outputs:
//
//	Handler - A handler function that logs events.
func LoggingHandler(logger *slog.Logger, level slog.Level) Handler {
	return func(event *Event) {
		attrs := []any{
			slog.String("event_type", string(event.Type)),
			slog.String("run_id", event.RunID),
			slog.Int("sequence", event.Sequence),
		}
		if event.NodeID != "" {
			attrs = append(attrs, slog.String("node_id", event.NodeID))
		}

		switch data := event.Data.(type) {
		case *RunStartedData:
			attrs = append(attrs, slog.String("goal", data.Goal))

		case *PlanSnapshotData:
			attrs = append(attrs,
				slog.Int("node_count", data.NodeCount),
				slog.Int("edge_count", data.EdgeCount),
			)

		case *PlanFinishedData:
			attrs = append(attrs, slog.Int("task_count", data.TaskCount))

		case *NodeScheduledData:
			attrs = append(attrs, slog.String("name", data.Name))

		case *NodePacketData:
			attrs = append(attrs, slog.String("packet_kind", string(data.Packet.Kind)))

		case *RunFinishedData:
			attrs = append(attrs,
				slog.String("state", data.State),
				slog.Float64("speedup_factor", data.SpeedupFactor),
			)
			if data.Error != "" {
				attrs = append(attrs, slog.String("error", data.Error))
			}
		}

		logger.Log(nil, level, "run event", attrs...)
	}
}

// ChannelHandler creates a handler that sends events to a channel.
//
// Inputs:
//
//	ch - The channel to send events to.
//	dropOnFull - Drop events when the channel is full instead of
//	             blocking the scheduler loop.
//
// Outputs:
//
//	Handler - A handler that forwards events.
func ChannelHandler(ch chan<- Event, dropOnFull bool) Handler {
	return func(event *Event) {
		if dropOnFull {
			select {
			case ch <- *event:
			default:
				// Channel full, drop event
			}
		} else {
			ch <- *event
		}
	}
}

// MultiHandler creates a handler that calls multiple handlers.
func MultiHandler(handlers ...Handler) Handler {
	return func(event *Event) {
		for _, h := range handlers {
			h(event)
		}
	}
}

// FilteredHandler creates a handler that only processes events matching a filter.
func FilteredHandler(handler Handler, filter Filter) Handler {
	return func(event *Event) {
		if filter(event) {
			handler(event)
		}
	}
}

// TypeFilter creates a filter that matches specific event types.
func TypeFilter(types ...Type) Filter {
	typeSet := make(map[Type]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event *Event) bool {
		return typeSet[event.Type]
	}
}

// NodeFilter creates a filter that matches one node's events.
func NodeFilter(nodeID string) Filter {
	return func(event *Event) bool {
		return event.NodeID == nodeID
	}
}

// TerminalFilter creates a filter that only passes run completion.
func TerminalFilter() Filter {
	return TypeFilter(TypeRunFinished)
}
