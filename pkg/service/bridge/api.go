//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package bridge

import (
	"time"

	"github.com/pkg/errors"
)

// API of the bridge, the hardware used to connect an infrared receiver
// module to a GPIO input line of the host.
type API interface {
	// ConfigureInput prepares the given pin as input.
	ConfigureInput(pin int) error
	// SetGlitchFilter causes level changes shorter than the given
	// number of usec to be ignored on the given pin.
	SetGlitchFilter(pin int, usec uint32) error
	// SetWatchdog arms a watchdog on the given pin.
	// When no edge is reported within msec milliseconds, the registered
	// handler is called once with LevelTimeout.
	// A value of 0 cancels the watchdog.
	SetWatchdog(pin int, msec uint32) error
	// RegisterEdgeCallback registers a handler that is called for every
	// edge (and watchdog timeout) on the given pin.
	// Handler invocations for a single registration are serialized.
	RegisterEdgeCallback(pin int, edge Edge, handler EdgeHandler) (Callback, error)

	// Turn status led on/off
	SetStatusLED(on bool) error
	// Blink status led with given duration between on/off
	BlinkStatusLED(delay time.Duration) error

	// Close releases all resources of the bridge.
	Close() error
}

// Level reported to an edge handler.
type Level uint8

const (
	// LevelLow is reported when the line goes low.
	LevelLow Level = 0
	// LevelHigh is reported when the line goes high.
	LevelHigh Level = 1
	// LevelTimeout is reported when the watchdog fires.
	LevelTimeout Level = 2
)

// String returns a human readable form of the level.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelHigh:
		return "high"
	case LevelTimeout:
		return "timeout"
	default:
		return "invalid"
	}
}

// Edge selects which transitions are reported.
type Edge uint8

const (
	EdgeRising Edge = iota
	EdgeFalling
	EdgeBoth
)

// EdgeHandler is called from the interrupt context of the bridge.
// Tick is a wrapping microsecond counter; use irdata.TickDiff to
// subtract ticks.
// Implementations must return quickly and never block.
type EdgeHandler func(pin int, level Level, tick uint32)

// Callback is the handle of a registered edge handler.
type Callback interface {
	// Cancel the registration. No handler invocations start after
	// Cancel returns. Cancel is idempotent.
	Cancel() error
}

var (
	// InvalidPinError is returned when a pin does not exist or is not configured.
	InvalidPinError = errors.New("invalid pin")
	// PinBusyError is returned when an edge callback is already registered for a pin.
	PinBusyError = errors.New("pin already has a registered callback")
)
