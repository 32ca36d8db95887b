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

package bridge

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// dispatcher routes edge events and watchdog timeouts to the handler
// registered for a pin. It is shared by all bridge implementations.
type dispatcher struct {
	// now returns the current tick, used for watchdog timeouts.
	now func() uint32

	regMutex      sync.Mutex
	registrations map[int]*registration

	wdMutex    sync.Mutex
	watchdogs  map[int]*time.Timer
	generation map[int]uint64
}

type registration struct {
	d        *dispatcher
	pin      int
	handler  EdgeHandler
	canceled int32
	// Serializes handler invocations (edges vs. watchdog)
	mutex      sync.Mutex
	cancelOnce sync.Once
	release    func() error
	cancelErr  error
}

func newDispatcher(now func() uint32) *dispatcher {
	return &dispatcher{
		now:           now,
		registrations: make(map[int]*registration),
		watchdogs:     make(map[int]*time.Timer),
		generation:    make(map[int]uint64),
	}
}

// register a handler for given pin.
// The release function is called when the registration is canceled.
func (d *dispatcher) register(pin int, handler EdgeHandler) (*registration, error) {
	d.regMutex.Lock()
	defer d.regMutex.Unlock()

	if _, found := d.registrations[pin]; found {
		return nil, errors.Wrapf(PinBusyError, "pin %d", pin)
	}
	r := &registration{
		d:       d,
		pin:     pin,
		handler: handler,
	}
	d.registrations[pin] = r
	return r, nil
}

// lookup the active registration for given pin.
func (d *dispatcher) lookup(pin int) *registration {
	d.regMutex.Lock()
	defer d.regMutex.Unlock()
	return d.registrations[pin]
}

// deliver an event to the handler of given pin (if any).
func (d *dispatcher) deliver(pin int, level Level, tick uint32) {
	r := d.lookup(pin)
	if r == nil {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if atomic.LoadInt32(&r.canceled) != 0 {
		return
	}
	callbacksTotal.WithLabelValues(strconv.Itoa(pin), level.String()).Inc()
	r.handler(pin, level, tick)
}

// setWatchdog (re)arms or cancels the watchdog of given pin.
func (d *dispatcher) setWatchdog(pin int, msec uint32) {
	d.wdMutex.Lock()
	defer d.wdMutex.Unlock()

	if t, found := d.watchdogs[pin]; found {
		t.Stop()
		delete(d.watchdogs, pin)
	}
	d.generation[pin]++
	if msec == 0 {
		return
	}
	gen := d.generation[pin]
	d.watchdogs[pin] = time.AfterFunc(time.Duration(msec)*time.Millisecond, func() {
		d.fireWatchdog(pin, gen)
	})
}

// fireWatchdog is called when the watchdog timer of given pin expires.
// Timers that were stopped or re-armed in the meantime are ignored.
func (d *dispatcher) fireWatchdog(pin int, gen uint64) {
	d.wdMutex.Lock()
	if d.generation[pin] != gen {
		d.wdMutex.Unlock()
		return
	}
	delete(d.watchdogs, pin)
	d.wdMutex.Unlock()

	watchdogFiredTotal.WithLabelValues(strconv.Itoa(pin)).Inc()
	d.deliver(pin, LevelTimeout, d.now())
}

// cancelAll cancels all registrations and watchdogs.
func (d *dispatcher) cancelAll() error {
	d.regMutex.Lock()
	regs := make([]*registration, 0, len(d.registrations))
	for _, r := range d.registrations {
		regs = append(regs, r)
	}
	d.regMutex.Unlock()

	var firstErr error
	for _, r := range regs {
		if err := r.Cancel(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	d.wdMutex.Lock()
	defer d.wdMutex.Unlock()
	for pin, t := range d.watchdogs {
		t.Stop()
		delete(d.watchdogs, pin)
		d.generation[pin]++
	}
	return firstErr
}

// Cancel the registration.
func (r *registration) Cancel() error {
	r.cancelOnce.Do(func() {
		atomic.StoreInt32(&r.canceled, 1)
		d := r.d
		d.regMutex.Lock()
		if d.registrations[r.pin] == r {
			delete(d.registrations, r.pin)
		}
		d.regMutex.Unlock()
		// Wait for a running handler invocation to finish.
		// Cancel must therefore never be called from within the handler.
		r.mutex.Lock()
		r.mutex.Unlock()
		if release := r.release; release != nil {
			if err := release(); err != nil {
				r.cancelErr = errors.Wrapf(err, "release pin %d failed", r.pin)
			}
		}
	})
	return r.cancelErr
}
