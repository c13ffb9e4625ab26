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
	"sync"
	"testing"
)

func TestEmitter_SubscribeAndEmit(t *testing.T) {
	e := NewEmitter("run-1")

	var got []*Event
	e.Subscribe(func(ev *Event) {
		got = append(got, ev)
	})

	e.Emit(TypeRunStarted, &RunStartedData{Goal: "build"})
	e.EmitForNode(TypeNodeScheduled, "1", &NodeScheduledData{Name: "Research"})

	if len(got) != 2 {
		t.Fatalf("received %d events, want 2", len(got))
	}
	if got[0].Type != TypeRunStarted || got[0].RunID != "run-1" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].NodeID != "1" {
		t.Errorf("NodeID = %q, want 1", got[1].NodeID)
	}
	if got[0].Sequence != 1 || got[1].Sequence != 2 {
		t.Errorf("sequences = %d, %d", got[0].Sequence, got[1].Sequence)
	}
}

func TestEmitter_TypeFilteredSubscription(t *testing.T) {
	e := NewEmitter("run-1")

	var terminal int
	e.Subscribe(func(*Event) { terminal++ }, TypeRunFinished)

	e.Emit(TypeRunStarted, nil)
	e.EmitForNode(TypeNodePacket, "1", nil)
	e.Emit(TypeRunFinished, &RunFinishedData{State: "goal_reached"})

	if terminal != 1 {
		t.Errorf("terminal handler fired %d times, want 1", terminal)
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter("run-1")

	count := 0
	id := e.Subscribe(func(*Event) { count++ })

	e.Emit(TypeRunStarted, nil)
	if !e.Unsubscribe(id) {
		t.Fatal("Unsubscribe() = false for live subscription")
	}
	e.Emit(TypeRunFinished, nil)

	if count != 1 {
		t.Errorf("handler fired %d times after unsubscribe, want 1", count)
	}
	if e.Unsubscribe(id) {
		t.Error("Unsubscribe() = true for removed subscription")
	}
}

func TestEmitter_EventsSince(t *testing.T) {
	e := NewEmitter("run-1")

	e.Emit(TypeRunStarted, nil)
	e.EmitForNode(TypeNodeScheduled, "1", nil)
	e.EmitForNode(TypeNodePacket, "1", nil)

	all := e.EventsSince(0)
	if len(all) != 3 {
		t.Fatalf("EventsSince(0) = %d events, want 3", len(all))
	}

	tail := e.EventsSince(all[1].Sequence)
	if len(tail) != 1 || tail[0].Type != TypeNodePacket {
		t.Errorf("EventsSince(%d) = %+v", all[1].Sequence, tail)
	}
}

func TestEmitter_BufferEviction(t *testing.T) {
	e := NewEmitter("run-1", WithBufferSize(2))

	e.Emit(TypeRunStarted, nil)
	e.EmitForNode(TypeNodeScheduled, "1", nil)
	e.EmitForNode(TypeNodePacket, "1", nil)

	buf := e.EventsSince(0)
	if len(buf) != 2 {
		t.Fatalf("buffer holds %d events, want 2", len(buf))
	}
	if buf[0].Type != TypeNodeScheduled {
		t.Errorf("oldest retained event = %s, want node_scheduled", buf[0].Type)
	}
}

func TestEmitter_HandlerPanicRecovered(t *testing.T) {
	e := NewEmitter("run-1")

	e.Subscribe(func(*Event) { panic("boom") })
	after := 0
	e.Subscribe(func(*Event) { after++ })

	e.Emit(TypeRunStarted, nil)

	if after != 1 {
		t.Errorf("handler after panicking one fired %d times, want 1", after)
	}
}

func TestEmitter_ConcurrentEmit(t *testing.T) {
	e := NewEmitter("run-1")

	var mu sync.Mutex
	seen := make(map[int]bool)
	e.Subscribe(func(ev *Event) {
		mu.Lock()
		seen[ev.Sequence] = true
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				e.EmitForNode(TypeNodePacket, "1", nil)
			}
		}()
	}
	wg.Wait()

	if len(seen) != 200 {
		t.Errorf("saw %d distinct sequences, want 200", len(seen))
	}

	// Handler invocation order is not guaranteed across emitters, but
	// the replay buffer must be gapless and sequence-ordered: it is the
	// source of truth consumers resync from.
	buffered := e.EventsSince(0)
	if len(buffered) != 200 {
		t.Fatalf("EventsSince(0) returned %d events, want 200", len(buffered))
	}
	for i, ev := range buffered {
		if ev.Sequence != i+1 {
			t.Fatalf("buffer[%d].Sequence = %d, want %d", i, ev.Sequence, i+1)
		}
	}
}

func TestChannelHandler_DropOnFull(t *testing.T) {
	ch := make(chan Event, 1)
	h := ChannelHandler(ch, true)

	h(&Event{Sequence: 1})
	h(&Event{Sequence: 2}) // dropped, channel full

	ev := <-ch
	if ev.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1", ev.Sequence)
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected buffered event %+v", ev)
	default:
	}
}

func TestMultiHandler(t *testing.T) {
	a, b := 0, 0
	h := MultiHandler(func(*Event) { a++ }, func(*Event) { b++ })
	h(&Event{})
	if a != 1 || b != 1 {
		t.Errorf("a = %d, b = %d, want 1, 1", a, b)
	}
}

func TestFilteredHandler(t *testing.T) {
	count := 0
	h := FilteredHandler(func(*Event) { count++ }, NodeFilter("2"))

	h(&Event{NodeID: "1"})
	h(&Event{NodeID: "2"})

	if count != 1 {
		t.Errorf("handler fired %d times, want 1", count)
	}
}
