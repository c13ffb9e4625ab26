// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package task

import (
	"testing"
)

func TestResult_Lifecycle(t *testing.T) {
	r := NewResult("1")

	if r.Status != StatusIdle {
		t.Fatalf("initial status = %s, want idle", r.Status)
	}
	if r.Status.IsTerminal() {
		t.Error("idle should not be terminal")
	}

	r = r.Apply(Packet{Kind: PacketStarting})
	if r.Status != StatusStarting {
		t.Errorf("status = %s, want starting", r.Status)
	}

	r = r.Apply(Packet{Kind: PacketToken, Token: "hel"})
	r = r.Apply(Packet{Kind: PacketToken, Token: "lo"})
	if r.Status != StatusWorking {
		t.Errorf("status = %s, want working", r.Status)
	}

	r = r.Apply(Packet{Kind: PacketDone, Value: "hello"})
	if r.Status != StatusDone || r.Value != "hello" {
		t.Errorf("terminal result = %+v", r)
	}
	if !r.Status.IsTerminal() {
		t.Error("done should be terminal")
	}

	// Prior packets are retained in order.
	if len(r.Packets) != 4 {
		t.Fatalf("packet log length = %d, want 4", len(r.Packets))
	}
	if r.Packets[1].Token != "hel" || r.Packets[2].Token != "lo" {
		t.Errorf("packet log out of order: %+v", r.Packets)
	}
}

func TestResult_ApplyDoesNotMutateReceiver(t *testing.T) {
	r := NewResult("1").Apply(Packet{Kind: PacketStarting})

	r2 := r.Apply(Packet{Kind: PacketError, Severity: SeverityFatal, Detail: "boom"})

	if r.Status != StatusStarting || len(r.Packets) != 1 {
		t.Errorf("receiver mutated: %+v", r)
	}
	if r2.Status != StatusError || r2.Severity != SeverityFatal || r2.Detail != "boom" {
		t.Errorf("error result = %+v", r2)
	}
}

func TestResult_WaitingOnHuman(t *testing.T) {
	r := NewResult("1").Apply(Packet{Kind: PacketHuman, Reason: "choose a vendor"})

	if r.Status != StatusWaitingOnHuman || r.Reason != "choose a vendor" {
		t.Errorf("result = %+v", r)
	}
	if !r.Status.IsTerminal() {
		t.Error("waitingOnHuman should be terminal")
	}
}

func TestOutcome_Packet(t *testing.T) {
	cases := []struct {
		name    string
		outcome Outcome
		want    PacketKind
	}{
		{"done", Done("value"), PacketDone},
		{"warn error", Failed(SeverityWarn, "minor"), PacketError},
		{"fatal error", Failed(SeverityFatal, "major"), PacketError},
		{"human", WaitingOnHuman("why"), PacketHuman},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.outcome.Packet()
			if p.Kind != tc.want {
				t.Errorf("Packet().Kind = %s, want %s", p.Kind, tc.want)
			}
			if !p.IsTerminal() {
				t.Error("outcome packet should be terminal")
			}
		})
	}
}

func TestOutcome_IsFatal(t *testing.T) {
	if !Failed(SeverityFatal, "x").IsFatal() {
		t.Error("fatal error should be fatal")
	}
	if Failed(SeverityWarn, "x").IsFatal() {
		t.Error("warn error should not be fatal")
	}
	if Done("x").IsFatal() || WaitingOnHuman("x").IsFatal() {
		t.Error("done/human should not be fatal")
	}
}
