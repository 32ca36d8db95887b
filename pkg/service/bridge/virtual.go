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
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/binkynet/IrWorker/pkg/irdata"
)

const (
	virtualPinCount = 28
)

// VirtualBridge is an in-process bridge without hardware.
// Edges are injected by the caller; watchdogs run on real timers and
// report a tick derived from the last injected tick.
type VirtualBridge struct {
	mutex      sync.Mutex
	inputs     map[int]uint32 // pin -> glitch usec
	lastTick   uint32
	lastAt     time.Time
	ledOn      bool
	dispatcher *dispatcher
}

var _ API = &VirtualBridge{}

// NewVirtualBridge implements the bridge for a virtual worker.
func NewVirtualBridge() *VirtualBridge {
	v := &VirtualBridge{
		inputs: make(map[int]uint32),
		lastAt: time.Now(),
	}
	v.dispatcher = newDispatcher(v.Now)
	return v
}

// Now returns the current virtual tick.
func (v *VirtualBridge) Now() uint32 {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.lastTick + uint32(time.Since(v.lastAt)/time.Microsecond)
}

// ConfigureInput prepares the given pin as input.
func (v *VirtualBridge) ConfigureInput(pin int) error {
	if pin < 0 || pin >= virtualPinCount {
		return errors.Wrapf(InvalidPinError, "pin %d out of range [0..%d)", pin, virtualPinCount)
	}
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if _, found := v.inputs[pin]; !found {
		v.inputs[pin] = 0
	}
	return nil
}

// SetGlitchFilter records the glitch filter of the given pin.
// Injected edges are not filtered.
func (v *VirtualBridge) SetGlitchFilter(pin int, usec uint32) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if _, found := v.inputs[pin]; !found {
		return errors.Wrapf(InvalidPinError, "pin %d is not configured as input", pin)
	}
	v.inputs[pin] = usec
	return nil
}

// SetWatchdog arms or cancels the watchdog of given pin.
func (v *VirtualBridge) SetWatchdog(pin int, msec uint32) error {
	v.dispatcher.setWatchdog(pin, msec)
	return nil
}

// RegisterEdgeCallback registers a handler for injected edges.
func (v *VirtualBridge) RegisterEdgeCallback(pin int, edge Edge, handler EdgeHandler) (Callback, error) {
	v.mutex.Lock()
	_, found := v.inputs[pin]
	v.mutex.Unlock()
	if !found {
		return nil, errors.Wrapf(InvalidPinError, "pin %d is not configured as input", pin)
	}
	reg, err := v.dispatcher.register(pin, handler)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// HasCallback returns true when an edge callback is registered for the given pin.
func (v *VirtualBridge) HasCallback(pin int) bool {
	return v.dispatcher.lookup(pin) != nil
}

// Inject an edge on the given pin at the given tick.
func (v *VirtualBridge) Inject(pin int, level Level, tick uint32) {
	v.mutex.Lock()
	v.lastTick = tick
	v.lastAt = time.Now()
	v.mutex.Unlock()
	v.dispatcher.deliver(pin, level, tick)
}

// Timeout reports a watchdog timeout on the given pin at the given tick,
// as if the watchdog fired.
func (v *VirtualBridge) Timeout(pin int, tick uint32) {
	v.dispatcher.setWatchdog(pin, 0)
	v.Inject(pin, LevelTimeout, tick)
}

// Play injects the edges of the given frame on the given pin, starting
// at the given tick. When activeLow is set, pulses are reported as low
// levels. The trailing space of the frame is not injected; it is ended
// by the watchdog. Returns the tick of the last edge.
func (v *VirtualBridge) Play(pin int, frame irdata.RawFrame, startTick uint32, activeLow bool) uint32 {
	active, idle := LevelHigh, LevelLow
	if activeLow {
		active, idle = LevelLow, LevelHigh
	}
	tick := startTick
	for i, p := range frame {
		v.Inject(pin, active, tick)
		tick += p.Pulse
		v.Inject(pin, idle, tick)
		if i < len(frame)-1 {
			tick += p.Space
		}
	}
	return tick
}

// StatusLED returns the current state of the virtual status led.
func (v *VirtualBridge) StatusLED() bool {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.ledOn
}

// Turn status led on/off
func (v *VirtualBridge) SetStatusLED(on bool) error {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.ledOn = on
	return nil
}

// Blink status led with given duration between on/off
func (v *VirtualBridge) BlinkStatusLED(delay time.Duration) error {
	return nil
}

// Close cancels all registrations and watchdogs.
func (v *VirtualBridge) Close() error {
	return v.dispatcher.cancelAll()
}

// GlitchFilter returns the glitch filter (usec) recorded for the given pin.
func (v *VirtualBridge) GlitchFilter(pin int) uint32 {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.inputs[pin]
}
