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
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/binkynet/IrWorker/pkg/irdata"
	"github.com/binkynet/IrWorker/pkg/service/bridge"
)

const (
	// DefaultGlitchUsec is the default glitch filter of the input pin.
	DefaultGlitchUsec = 250
	// LeaderMinUsec is the minimum length of the first pulse of a frame.
	// Shorter first pulses are considered noise.
	LeaderMinUsec = 300
	// IntervalMaxUsec is the maximum interval stored in a frame.
	IntervalMaxUsec = 500 * 1000
	// DefaultWatchdogMsec is the default time without edges that ends a frame.
	DefaultWatchdogMsec = IntervalMaxUsec / 1000 / 2

	queueSize = 1024
)

var (
	// ErrBusy is returned by Recv when another Recv is in progress.
	ErrBusy = errors.New("receive already in progress")
	// ErrClosed is returned by Recv after End has been called.
	ErrClosed = errors.New("receiver ended")
)

// Config of a Receiver.
type Config struct {
	// GPIO pin the IR receiver module is connected to
	Pin int
	// Glitch filter in usec (0 means DefaultGlitchUsec)
	GlitchUsec uint32
	// Watchdog in msec (0 means DefaultWatchdogMsec)
	WatchdogMsec uint32
	// If set, a high level marks a pulse.
	// Most IR receiver modules are active low, so this is normally false.
	ActiveHigh bool
}

// Dependencies of a Receiver.
type Dependencies struct {
	Log    zerolog.Logger
	Bridge bridge.API
}

// message is a single entry of the event queue.
type message struct {
	level bridge.Level
	tick  uint32
}

// capture holds the state of a single Recv call.
type capture struct {
	queue       chan message
	end         chan struct{}
	endOnce     sync.Once
	done        chan struct{}
	receiving   int32
	timedOut    int32  // atomic, set before end is signaled
	timeoutTick uint32 // atomic
	callback    bridge.Callback
	cbMutex     sync.Mutex
}

func newCapture(size int) *capture {
	return &capture{
		queue: make(chan message, size),
		end:   make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// signalTimeout records the watchdog timeout and ends the queue.
// The timeout never goes through the queue, so it cannot be dropped.
func (c *capture) signalTimeout(tick uint32) {
	atomic.StoreUint32(&c.timeoutTick, tick)
	atomic.StoreInt32(&c.timedOut, 1)
	c.signalEnd()
}

// timeout returns the tick of the watchdog timeout, if any.
func (c *capture) timeout() (uint32, bool) {
	if atomic.LoadInt32(&c.timedOut) == 0 {
		return 0, false
	}
	return atomic.LoadUint32(&c.timeoutTick), true
}

// signalEnd closes the end-of-queue signal (once).
func (c *capture) signalEnd() {
	c.endOnce.Do(func() { close(c.end) })
}

// cancelCallback cancels the edge callback registration (if any).
func (c *capture) cancelCallback() error {
	c.cbMutex.Lock()
	cb := c.callback
	c.callback = nil
	c.cbMutex.Unlock()
	if cb != nil {
		return cb.Cancel()
	}
	return nil
}

// Receiver captures infrared frames from a single GPIO pin.
type Receiver struct {
	Config
	Dependencies

	pinLabel     string
	watchdogMsec uint32 // atomic
	sem          *semaphore.Weighted
	mutex        sync.Mutex
	closed       bool
	current      *capture
}

// New configures the pin and creates a Receiver.
// Failures to configure the pin are returned as errors.
func New(cfg Config, deps Dependencies) (*Receiver, error) {
	if cfg.GlitchUsec == 0 {
		cfg.GlitchUsec = DefaultGlitchUsec
	}
	if cfg.WatchdogMsec == 0 {
		cfg.WatchdogMsec = DefaultWatchdogMsec
	}
	deps.Log = deps.Log.With().Str("component", "receiver").Int("pin", cfg.Pin).Logger()
	if deps.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if err := deps.Bridge.ConfigureInput(cfg.Pin); err != nil {
		return nil, errors.Wrapf(err, "ConfigureInput[%d] failed", cfg.Pin)
	}
	if err := deps.Bridge.SetGlitchFilter(cfg.Pin, cfg.GlitchUsec); err != nil {
		return nil, errors.Wrapf(err, "SetGlitchFilter[%d] failed", cfg.Pin)
	}
	deps.Log.Debug().
		Uint32("glitch_usec", cfg.GlitchUsec).
		Uint32("watchdog_msec", cfg.WatchdogMsec).
		Bool("active_high", cfg.ActiveHigh).
		Msg("receiver configured")
	return &Receiver{
		Config:       cfg,
		Dependencies: deps,
		pinLabel:     strconv.Itoa(cfg.Pin),
		watchdogMsec: cfg.WatchdogMsec,
		sem:          semaphore.NewWeighted(1),
	}, nil
}

// SetWatchdog sets the time (msec) without edges after which a frame
// is considered complete. 0 restores the default.
func (r *Receiver) SetWatchdog(msec uint32) {
	if msec == 0 {
		msec = DefaultWatchdogMsec
	}
	r.Log.Debug().Uint32("msec", msec).Msg("set watchdog")
	atomic.StoreUint32(&r.watchdogMsec, msec)
}

// Watchdog returns the current watchdog interval in msec.
func (r *Receiver) Watchdog() uint32 {
	return atomic.LoadUint32(&r.watchdogMsec)
}

// Recv blocks until a complete frame has been received.
// A frame ends when no edge occurs within the watchdog interval.
// When End is called during Recv, the partial frame is returned
// together with ErrClosed.
func (r *Receiver) Recv() (irdata.RawFrame, error) {
	if !r.sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer r.sem.Release(1)

	c := newCapture(queueSize)
	r.mutex.Lock()
	if r.closed {
		r.mutex.Unlock()
		return nil, ErrClosed
	}
	r.current = c
	r.mutex.Unlock()
	defer func() {
		r.mutex.Lock()
		if r.current == c {
			r.current = nil
		}
		r.mutex.Unlock()
	}()

	builder := newFrameBuilder(LeaderMinUsec, IntervalMaxUsec)
	go r.worker(c, builder)

	atomic.StoreInt32(&c.receiving, 1)
	cb, err := r.Bridge.RegisterEdgeCallback(r.Pin, bridge.EdgeBoth, func(pin int, level bridge.Level, tick uint32) {
		r.onEdge(c, level, tick)
	})
	if err != nil {
		atomic.StoreInt32(&c.receiving, 0)
		c.signalEnd()
		<-c.done
		return nil, errors.Wrapf(err, "RegisterEdgeCallback[%d] failed", r.Pin)
	}
	c.cbMutex.Lock()
	c.callback = cb
	c.cbMutex.Unlock()

	r.Log.Debug().Msg("ready")

	// Wait for the worker to finish
	<-c.done
	if err := c.cancelCallback(); err != nil {
		r.Log.Warn().Err(err).Msg("cancel callback failed")
	}

	frame := builder.result()
	r.mutex.Lock()
	closed := r.closed
	r.mutex.Unlock()
	if closed && !completed(builder) {
		return frame, ErrClosed
	}
	framesTotal.WithLabelValues(r.pinLabel).Inc()
	framePairs.Observe(float64(len(frame)))
	r.Log.Debug().Int("pairs", len(frame)).Uint64("usec", frame.Duration()).Msg("done")
	return frame, nil
}

// completed returns true when the builder saw the end of the frame.
func completed(b *frameBuilder) bool {
	return b.state == stateComplete
}

// onEdge is called by the bridge for every edge and watchdog timeout.
// It runs in interrupt context: it only queues the event and (re)arms
// the watchdog.
func (r *Receiver) onEdge(c *capture, level bridge.Level, tick uint32) {
	if atomic.LoadInt32(&c.receiving) == 0 {
		return
	}
	if level == bridge.LevelTimeout {
		// End of frame; stop accepting events
		r.Bridge.SetWatchdog(r.Pin, 0)
		atomic.StoreInt32(&c.receiving, 0)
		c.signalTimeout(tick)
		return
	}
	select {
	case c.queue <- message{level: level, tick: tick}:
	default:
		droppedEventsTotal.WithLabelValues(r.pinLabel).Inc()
	}
	r.Bridge.SetWatchdog(r.Pin, r.Watchdog())
}

// worker drains the event queue until the end signal and folds
// the events into the frame.
func (r *Receiver) worker(c *capture, b *frameBuilder) {
	defer close(c.done)
	log := r.Log
	var lastTick uint32
	process := func(msg message) {
		sym, ok := r.toSymbol(msg.level)
		if !ok {
			log.Warn().Uint8("level", uint8(msg.level)).Msg("invalid event .. ignored")
			return
		}
		interval := irdata.TickDiff(lastTick, msg.tick)
		lastTick = msg.tick
		switch b.handle(sym, interval) {
		case actionAbort:
			abortedTotal.WithLabelValues(r.pinLabel).Inc()
			log.Debug().
				Uint32("interval_usec", interval).
				Uint32("leader_min_usec", LeaderMinUsec).
				Msg("leader is too short .. ignored")
			r.Bridge.SetWatchdog(r.Pin, 0)
		case actionComplete:
			log.Debug().Msg("timeout")
		}
	}
	for {
		select {
		case msg := <-c.queue:
			process(msg)
		case <-c.end:
			// Drain remaining events
			for {
				select {
				case msg := <-c.queue:
					process(msg)
				default:
					if tick, ok := c.timeout(); ok {
						process(message{level: bridge.LevelTimeout, tick: tick})
					}
					return
				}
			}
		}
	}
}

// toSymbol maps a bridge level to a frame symbol using the configured polarity.
func (r *Receiver) toSymbol(level bridge.Level) (symbol, bool) {
	switch level {
	case bridge.LevelTimeout:
		return symbolTimeout, true
	case bridge.LevelLow:
		if r.ActiveHigh {
			return symbolIdle, true
		}
		return symbolActive, true
	case bridge.LevelHigh:
		if r.ActiveHigh {
			return symbolActive, true
		}
		return symbolIdle, true
	default:
		return 0, false
	}
}

// End stops the receiver: a running Recv is interrupted and
// subsequent Recv calls return ErrClosed.
// End is safe to call concurrently and more than once.
func (r *Receiver) End() {
	r.mutex.Lock()
	wasClosed := r.closed
	r.closed = true
	c := r.current
	r.mutex.Unlock()

	if c != nil {
		// Unregister first, so no new events arrive after the end signal
		atomic.StoreInt32(&c.receiving, 0)
		if err := c.cancelCallback(); err != nil {
			r.Log.Warn().Err(err).Msg("cancel callback failed")
		}
		r.Bridge.SetWatchdog(r.Pin, 0)
		c.signalEnd()
		<-c.done
	}
	if !wasClosed {
		r.Log.Debug().Msg("ended")
	}
}
