// Copyright 2025 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package receiver

import (
	"testing"

	"github.com/binkynet/IrWorker/pkg/irdata"
)

type step struct {
	sym      symbol
	interval uint32
	action   action
	state    frameState
}

func runSteps(t *testing.T, b *frameBuilder, steps []step) {
	t.Helper()
	for i, s := range steps {
		if a := b.handle(s.sym, s.interval); a != s.action {
			t.Errorf("Step %d: expected action %d, got %d", i, s.action, a)
		}
		if b.state != s.state {
			t.Errorf("Step %d: expected state %s, got %s", i, s.state, b.state)
		}
	}
}

func TestFrameBuilderPairs(t *testing.T) {
	b := newFrameBuilder(LeaderMinUsec, IntervalMaxUsec)
	runSteps(t, b, []step{
		{symbolActive, 123456, actionNone, stateIdle},  // leading idle, discarded
		{symbolIdle, 9000, actionNone, statePulseOpen}, // leader pulse
		{symbolActive, 4500, actionNone, stateIdle},    // leader space
		{symbolIdle, 560, actionNone, statePulseOpen},  // bit pulse
		{symbolActive, 1690, actionNone, stateIdle},    // bit space
		{symbolIdle, 560, actionNone, statePulseOpen},  // stop pulse
		{symbolTimeout, 250000, actionComplete, stateComplete},
		{symbolIdle, 560, actionNone, stateComplete}, // ignored after completion
	})
	expected := irdata.RawFrame{{Pulse: 9000, Space: 4500}, {Pulse: 560, Space: 1690}, {Pulse: 560, Space: 250000}}
	assertFrame(t, expected, b.result())
}

func TestFrameBuilderShortLeader(t *testing.T) {
	b := newFrameBuilder(LeaderMinUsec, IntervalMaxUsec)
	runSteps(t, b, []step{
		{symbolActive, 1000, actionNone, stateIdle},
		{symbolIdle, LeaderMinUsec - 1, actionAbort, stateIdle},
		// A short pulse that is not first is fine
		{symbolActive, 50000, actionNone, stateIdle},
		{symbolIdle, LeaderMinUsec, actionNone, statePulseOpen},
		{symbolActive, 600, actionNone, stateIdle},
		{symbolIdle, 100, actionNone, statePulseOpen},
	})
	expected := irdata.RawFrame{{Pulse: LeaderMinUsec, Space: 600}, {Pulse: 100, Space: 0}}
	assertFrame(t, expected, b.result())
}

func TestFrameBuilderIdleWithoutMark(t *testing.T) {
	b := newFrameBuilder(LeaderMinUsec, IntervalMaxUsec)
	runSteps(t, b, []step{
		{symbolIdle, 9000, actionNone, stateIdle},
		{symbolTimeout, 250000, actionComplete, stateComplete},
	})
	if !b.result().IsEmpty() {
		t.Errorf("Expected empty frame, got %v", b.result())
	}
}

func TestFrameBuilderClamp(t *testing.T) {
	b := newFrameBuilder(LeaderMinUsec, IntervalMaxUsec)
	runSteps(t, b, []step{
		{symbolActive, 0, actionNone, stateIdle},
		{symbolIdle, IntervalMaxUsec + 100, actionNone, statePulseOpen},
		{symbolTimeout, 0xFFFFFFFF, actionComplete, stateComplete},
	})
	expected := irdata.RawFrame{{Pulse: IntervalMaxUsec, Space: IntervalMaxUsec}}
	assertFrame(t, expected, b.result())
}

func TestFrameBuilderMissedEdges(t *testing.T) {
	b := newFrameBuilder(LeaderMinUsec, IntervalMaxUsec)
	runSteps(t, b, []step{
		{symbolActive, 0, actionNone, stateIdle},
		{symbolIdle, 3400, actionNone, statePulseOpen},
		{symbolIdle, 100, actionNone, statePulseOpen}, // duplicate level
		{symbolActive, 1700, actionNone, stateIdle},
		{symbolActive, 100, actionNone, stateIdle}, // duplicate level
	})
	expected := irdata.RawFrame{{Pulse: 3400, Space: 1700}}
	assertFrame(t, expected, b.result())
}

func assertFrame(t *testing.T, expected, actual irdata.RawFrame) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("Expected %d pairs, got %d (%v)", len(expected), len(actual), actual)
	}
	for i := range expected {
		if expected[i] != actual[i] {
			t.Errorf("Pair %d: expected %s, got %s", i, expected[i], actual[i])
		}
	}
}
