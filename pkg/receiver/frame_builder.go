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
	"github.com/binkynet/IrWorker/pkg/irdata"
)

// frameState is the state of a frameBuilder.
type frameState int

const (
	// No pair open: waiting for the end of a pulse.
	stateIdle frameState = iota
	// The last pair has its pulse set, waiting for the end of its space.
	statePulseOpen
	// Frame ended by a timeout.
	stateComplete
)

func (s frameState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePulseOpen:
		return "pulse-open"
	case stateComplete:
		return "complete"
	default:
		return "invalid"
	}
}

// symbol is a level as seen by the frame builder, after polarity mapping.
type symbol int

const (
	symbolActive symbol = iota // start of a mark (end of a space)
	symbolIdle                 // end of a mark (start of a space)
	symbolTimeout
)

// action tells the caller what to do after an event was handled.
type action int

const (
	actionNone action = iota
	// Leader too short; the attempt is aborted and the watchdog must be canceled.
	actionAbort
	// Frame is complete.
	actionComplete
)

// frameBuilder folds intervals into pulse/space pairs.
// It is only used by a single goroutine.
type frameBuilder struct {
	leaderMin   uint32
	maxInterval uint32

	state       frameState
	markStarted bool
	frame       irdata.RawFrame
}

func newFrameBuilder(leaderMin, maxInterval uint32) *frameBuilder {
	return &frameBuilder{
		leaderMin:   leaderMin,
		maxInterval: maxInterval,
	}
}

// reset the builder for a new attempt.
func (b *frameBuilder) reset() {
	b.state = stateIdle
	b.markStarted = false
	b.frame = nil
}

// clamp the given interval to the maximum interval.
func (b *frameBuilder) clamp(interval uint32) uint32 {
	if interval > b.maxInterval {
		return b.maxInterval
	}
	return interval
}

// handle a single event with the given interval (usec since the previous event).
func (b *frameBuilder) handle(sym symbol, interval uint32) action {
	interval = b.clamp(interval)
	switch b.state {
	case stateComplete:
		return actionNone
	case stateIdle:
		switch sym {
		case symbolActive:
			if len(b.frame) == 0 {
				// Leading idle time; the signal starts here
				b.markStarted = true
			}
			return actionNone
		case symbolIdle:
			if len(b.frame) == 0 {
				if !b.markStarted {
					// End of a mark we never saw starting
					return actionNone
				}
				if interval < b.leaderMin {
					b.reset()
					return actionAbort
				}
			}
			b.frame = append(b.frame, irdata.TimingPair{Pulse: interval})
			b.state = statePulseOpen
			return actionNone
		case symbolTimeout:
			b.state = stateComplete
			return actionComplete
		}
	case statePulseOpen:
		switch sym {
		case symbolActive:
			b.frame[len(b.frame)-1].Space = interval
			b.state = stateIdle
			return actionNone
		case symbolIdle:
			// Missed an edge; keep the open pulse
			return actionNone
		case symbolTimeout:
			b.frame[len(b.frame)-1].Space = interval
			b.state = stateComplete
			return actionComplete
		}
	}
	return actionNone
}

// result returns the frame built so far.
func (b *frameBuilder) result() irdata.RawFrame {
	return b.frame
}
